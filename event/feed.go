// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package event

import (
	"errors"
	"reflect"
	"sync"
)

// errBadChannel indicates that a value passed to Subscribe is not a channel or not sendable.
var errBadChannel = errors.New("event: Subscribe argument does not have sendable channel type") // event: Subscribe

// Feed implements one-to-many subscriptions where the carrier of events is a channel.
// Values sent to a Feed are delivered to all subscribed channels simultaneously.
//
// Feeds can only be used with a single type. The type is determined by the first Send or
// Subscribe operation. Subsequent calls to these methods panic if the type does not
// match.
//
// The zero value is ready to use.
type Feed struct {
	// once ensures that init only runs once for lazy initialization.
	once sync.Once // ensures that init only runs once

	// sendLock has a one-element buffer and is empty when held.It protects sendCases.
	// This acts as a mutex for the Send operation.
	sendLock chan struct{}

	// removeSub chan interface{} // interrupts Send when a subscription is removed during a Send operation.
	removeSub chan interface{}

	// sendCases is the active set of select cases used by Send. sendCases[0] is always the removeSub case.
	// sendCases
	sendCases caseList

	// --- Fields protected by mu ---

	// mu protects inbox and etype.
	// mu
	mu sync.Mutex

	// inbox holds newly subscribed channels until they are added to sendCases at the start of the next Send.
	inbox caseList

	// etype stores the required event type for this feed.
	etype reflect.Type
}

// This is the index of the first actual subscription channel in sendCases.
// sendCases[0] is a SelectRecv case for the removeSub channel.
// sendCases[0]
const firstSubSendCase = 1

// feedTypeError represents a type mismatch error during Send or Subscribe.
type feedTypeError struct {
	got, want reflect.Type // The type received and the type expected
	op        string       // The operation where the error occurred ("Send" or "Subscribe")
}

// Error implements the error interface.
func (e feedTypeError) Error() string {
	return "event: wrong type in " + e.op + " got " + e.got.String() + ", want " + e.want.String() // event
}

// init initializes the feed structure. It is called lazily and exactly once by sync.Once.
func (f *Feed) init(etype reflect.Type) {
	f.etype = etype                                                                       // Store the event type
	f.removeSub = make(chan interface{})                                                  // Create remove signal channel
	f.sendLock = make(chan struct{}, 1)                                                   // Create send lock channel (buffered, size 1)
	f.sendLock <- struct{}{}                                                              // Put the initial token into the lock channel
	f.sendCases = caseList{{Chan: reflect.ValueOf(f.removeSub), Dir: reflect.SelectRecv}} // Initialize sendCases with the removeSub listener case
}

// Subscribe adds a channel to the feed. Future sends will be delivered on the channel
// until the subscription is canceled. All channels added must have the same element type.
//
// The channel should have ample buffer space to avoid blocking other subscribers.
// Slow subscribers are not dropped.
func (f *Feed) Subscribe(channel interface{}) Subscription {
	// 1. Validate input channel using reflection.
	chanval := reflect.ValueOf(channel)
	chantyp := chanval.Type()
	// Must be a channel, must be sendable (SendDir)
	if chantyp.Kind() != reflect.Chan || chantyp.ChanDir()&reflect.SendDir == 0 {
		panic(errBadChannel) // Panic if validation fails
	}

	// 2. Create the subscription object.
	sub := &feedSub{feed: f, channel: chanval, err: make(chan error, 1)} // err chan signals Unsubscribe

	// 3. Initialize the feed lazily on the first Subscribe/Send.
	// The element type of the first channel determines the feed's type.
	f.once.Do(func() { f.init(chantyp.Elem()) })

	// 4. Check if the new channel's element type matches the feed's established type.
	if f.etype != chantyp.Elem() {
		panic(feedTypeError{op: "Subscribe", got: chantyp, want: reflect.ChanOf(reflect.SendDir, f.etype)})
	}

	// 5. Add the channel to the inbox (protected by mutex).
	f.mu.Lock()
	defer f.mu.Unlock()
	// Add the select case to the inbox.
	// The next Send will add it to f.sendCases.
	cas := reflect.SelectCase{Dir: reflect.SelectSend, Chan: chanval} // Create SelectSend case
	f.inbox = append(f.inbox, cas)                                    // Append to inbox
	return sub                                                        // Return the subscription handle
}

// remove handles the removal of a subscription. It needs to delete the corresponding
// SelectCase from either the inbox or the active sendCases list.
func (f *Feed) remove(sub *feedSub) {
	// Delete from inbox first, which covers channels
	// that have not been added to f.sendCases yet.
	ch := sub.channel.Interface() // Get the raw channel interface
	f.mu.Lock()                   // Lock to access inbox
	index := f.inbox.find(ch)     // Try to find channel in inbox
	if index != -1 {              // Found in inbox?
		f.inbox = f.inbox.delete(index) // Remove from inbox
		f.mu.Unlock()                   // Unlock and return
		return
	}
	f.mu.Unlock() // Not in inbox, unlock mu

	// Not in inbox, so it must be in sendCases (or was).
	// We need to interrupt Send if it's running, or acquire the sendLock
	// if it's not, to safely modify sendCases.
	select {
	case f.removeSub <- ch: // Try to signal the running Send operation
		// Send will remove the channel from f.sendCases.
	case <-f.sendLock: // Acquire the send lock (if Send is not running)
		// No Send is in progress, delete the channel now that we have the send lock.
		f.sendCases = f.sendCases.delete(f.sendCases.find(ch)) // Find and delete from sendCases
		f.sendLock <- struct{}{}                               // Release the send lock
	}
}

// Send delivers to all subscribed channels simultaneously.
// It returns the number of subscribers that the value was sent to.
func (f *Feed) Send(value interface{}) (nsent int) {
	// 1. Get reflection value of the input.
	rvalue := reflect.ValueOf(value)

	// 2. Initialize feed lazily and check type consistency.
	f.once.Do(func() { f.init(rvalue.Type()) }) // Lazy init
	if f.etype != rvalue.Type() {               // Check type
		panic(feedTypeError{op: "Send", got: rvalue.Type(), want: f.etype})
	}

	// 3. Acquire the send lock to ensure exclusive access to sendCases.
	<-f.sendLock

	// ---- Send Lock Held ---- // ----

	// 4. Move new subscribers from inbox to sendCases.
	// Add new cases from the inbox after taking the send lock.
	f.mu.Lock()                                   // Lock to access inbox
	f.sendCases = append(f.sendCases, f.inbox...) // Append inbox cases
	f.inbox = nil                                 // Clear inbox
	f.mu.Unlock()                                 // Unlock mu

	// 5. Prepare all send cases with the value to be sent.
	// Set the sent value on all channels.
	for i := firstSubSendCase; i < len(f.sendCases); i++ {
		f.sendCases[i].Send = rvalue // Set the value field in SelectCase
	}

	// 6. The core sending loop using reflect.Select.
	// Send until all channels except removeSub have been chosen. 'cases' tracks a prefix
	// of sendCases. When a send succeeds, the corresponding case moves to the end of
	// 'cases' and it shrinks by one element.
	cases := f.sendCases // 'cases' is the shrinking slice of active cases 'cases'
	for {
		// Fast path: try sending without blocking before adding to the select set.
		// This should usually succeed if subscribers are fast enough and have free
		// buffer space.
		for i := firstSubSendCase; i < len(cases); i++ {
			if cases[i].Chan.TrySend(rvalue) { // Attempt non-blocking send
				nsent++                     // Increment count
				cases = cases.deactivate(i) // Deactivate successful case
				i--                         // Adjust index after deactivation
			}
		}
		// If all sends completed in fast path, or only removeSub remains.
		if len(cases) == firstSubSendCase {
			break // Exit loop
		}

		// Blocking path: Wait for at least one case to become ready.
		// Select on all the receivers, waiting for them to unblock.
		chosen, recv, _ := reflect.Select(cases) // Block until a case is selected

		if chosen == 0 /* <-f.removeSub */ { // Case 0 is always removeSub Case 0
			// An unsubscribe request arrived during send.
			index := f.sendCases.find(recv.Interface()) // Find the channel in the original list
			f.sendCases = f.sendCases.delete(index)     // Delete from original list
			if index >= 0 && index < len(cases) {       // Was it part of the active 'cases'?
				// Shrink 'cases' too because the removed case was still active.
				// Note: This re-slices f.sendCases which was just modified.
				cases = f.sendCases[:len(cases)-1]
			}
		} else { // A send to a subscriber channel succeeded
			cases = cases.deactivate(chosen) // Deactivate the chosen case
			nsent++                          // Increment count
		}
	} // End of sending loop

	// 7. Clean up: Remove references to the sent value from sendCases.
	// Forget about the sent value and hand off the send lock.
	for i := firstSubSendCase; i < len(f.sendCases); i++ {
		f.sendCases[i].Send = reflect.Value{} // Zero out the Send field
	}

	// 8. Release the send lock.
	f.sendLock <- struct{}{}
	// ---- Send Lock Released ---- // ----
	return nsent // Return number of successful sends
}

// feedSub represents a single subscription managed by a Feed.
type feedSub struct {
	feed    *Feed         // Reference to the parent feed
	channel reflect.Value // The subscriber's channel value
	errOnce sync.Once     // Ensures Unsubscribe logic runs only once
	err     chan error    // Closed when Unsubscribe is called
}

// Unsubscribe removes the subscription from the feed.
func (sub *feedSub) Unsubscribe() {
	// Use sync.Once to make Unsubscribe idempotent.
	sub.errOnce.Do(func() {
		sub.feed.remove(sub) // Tell the feed to remove this subscription
		close(sub.err)       // Close the error channel to signal completion
	})
}

// Err returns a channel that is closed when the subscription is unsubscribed.
// This is useful for select statements waiting on the subscription lifecycle.
func (sub *feedSub) Err() <-chan error {
	return sub.err
}

// caseList is a helper type for managing a slice of reflect.SelectCase.
type caseList []reflect.SelectCase

// find returns the index of a case containing the given channel interface.
func (cs caseList) find(channel interface{}) int {
	for i, cas := range cs {
		// Check Chan field, which should be valid for Send and Recv cases we use.
		if cas.Chan.IsValid() && cas.Chan.Interface() == channel {
			return i // Return index if found
		}
	}
	return -1 // Not found
}

// delete removes the case at the given index from cs.
// Note: It deletes in place, reusing the backing array of cs.
func (cs caseList) delete(index int) caseList {
	if index < 0 || index >= len(cs) {
		return cs // Index out of bounds, return original slice
	}
	return append(cs[:index], cs[index+1:]...) // Standard slice deletion
}

// deactivate moves the case at index into the non-accessible portion of the cs slice
// by swapping it with the last element and returning a shorter slice view.
// This avoids allocation during the Send loop.
func (cs caseList) deactivate(index int) caseList {
	last := len(cs) - 1                       // Index of the last element
	cs[index], cs[last] = cs[last], cs[index] // Swap chosen case with the last one
	return cs[:last]                          // Return slice excluding the last element
}

/* // String method for debugging caseList (commented out in original)
func (cs caseList) String() string {
	s := "["
	for i, cas := range cs {
			if i != 0 {
					s += ", "
			}
			switch cas.Dir {
			case reflect.SelectSend:
					s += fmt.Sprintf("%v<-", cas.Chan.Interface())
			case reflect.SelectRecv:
					s += fmt.Sprintf("<-%v", cas.Chan.Interface())
			}
	}
	return s + "]"
}
*/
