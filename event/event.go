// Copyright 2014 The go-ethereum Authors
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

// Package event deals with subscriptions to real-time events.
package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// TypeMuxEvent is a time-tagged notification pushed to subscribers.
type TypeMuxEvent struct {
	Time time.Time   // The time when the event was Post'ed
	Data interface{} // The actual event data
}

// A TypeMux dispatches events to registered receivers. Receivers can be
// registered to handle events of certain type. Any operation
// called after mux is stopped will return ErrMuxClosed.
//
// The zero value is ready to use.
//
// Deprecated: use Feed
type TypeMux struct {
	// mutex protects the subm map and stopped field. RWMutex allows concurrent Posts.
	mutex sync.RWMutex

	// subm maps event types to slices of subscriptions interested in that type.
	subm map[reflect.Type][]*TypeMuxSubscription

	// stopped indicates whether the mux has been stopped.
	stopped bool
}

// ErrMuxClosed is returned when Posting on a closed TypeMux.
var ErrMuxClosed = errors.New("event: mux closed") // event: mux

// Subscribe creates a subscription for events of the given types. The
// subscription's channel is closed when it is unsubscribed
// or the mux is closed.
func (mux *TypeMux) Subscribe(types ...interface{}) *TypeMuxSubscription {
	// 1. Create a new subscription object.
	sub := newsub(mux)

	// 2. Acquire write lock to modify the subscription map.
	mux.mutex.Lock()
	defer mux.mutex.Unlock()

	// 3. Check if mux is already stopped.
	if mux.stopped {
		// set the status to closed so that calling Unsubscribe after this
		// call will short circuit.
		sub.closed = true // Mark subscription as closed
		close(sub.postC)  // Close the internal post channel
	} else {
		// 4. Initialize the map if it's the first subscription.
		if mux.subm == nil {
			mux.subm = make(map[reflect.Type][]*TypeMuxSubscription, len(types))
		}
		// 5. Register the subscription for each requested type.
		for _, t := range types {
			rtyp := reflect.TypeOf(t) // Get the type
			oldsubs := mux.subm[rtyp] // Get existing subscriptions for this type
			// Check for duplicate registration within this single Subscribe call.
			if find(oldsubs, sub) != -1 { // find is a helper function
				// Note: This panic might not be ideal behavior for library users.
				panic(fmt.Sprintf("event: duplicate type %s in Subscribe", rtyp)) // event: Subscribe
			}
			// Create a new slice with room for the new subscription.
			subs := make([]*TypeMuxSubscription, len(oldsubs)+1)
			copy(subs, oldsubs)      // Copy existing subscriptions
			subs[len(oldsubs)] = sub // Add the new subscription
			mux.subm[rtyp] = subs    // Update the map
		}
	}
	// 6. Return the subscription object.
	return sub
}

// Post sends an event to all receivers registered for the given type.
// It returns ErrMuxClosed if the mux has been stopped.
func (mux *TypeMux) Post(ev interface{}) error {
	// 1. Wrap the event data with a timestamp.
	event := &TypeMuxEvent{
		Time: time.Now(), // Record current time
		Data: ev,         // Store the original event data
	}
	rtyp := reflect.TypeOf(ev) // Get the type of the event data

	// 2. Acquire read lock to access the subscription map safely.
	mux.mutex.RLock()
	// 3. Check if mux is stopped while holding the lock.
	if mux.stopped {
		mux.mutex.RUnlock() // Release lock before returning
		return ErrMuxClosed
	}
	// 4. Get the list of subscribers for this event type.
	subs := mux.subm[rtyp]
	// 5. Release read lock. Delivery happens outside the lock.
	mux.mutex.RUnlock()

	// 6. Deliver the event to each subscriber in the list.
	for _, sub := range subs {
		sub.deliver(event) // Call deliver method on the subscription object
	}
	return nil // Success
}

// Stop closes a mux. The mux can no longer be used.
// Future Post calls will fail with ErrMuxClosed.
// Stop blocks until all current deliveries have finished.
func (mux *TypeMux) Stop() {
	// 1. Acquire write lock for exclusive access.
	mux.mutex.Lock()
	defer mux.mutex.Unlock()
	// 2. Iterate through all subscriptions and close them.
	for _, subs := range mux.subm {
		for _, sub := range subs {
			sub.closewait() // Close each subscription
		}
	}
	// 3. Clear the subscription map and mark as stopped.
	mux.subm = nil
	mux.stopped = true
}

// del removes a subscription 's' from the mux's internal map.
// Called by TypeMuxSubscription.Unsubscribe.
func (mux *TypeMux) del(s *TypeMuxSubscription) {
	// 1. Acquire write lock.
	mux.mutex.Lock()
	defer mux.mutex.Unlock()
	// 2. Iterate through all types in the map.
	for typ, subs := range mux.subm {
		// 3. Find the subscription in the slice for this type.
		if pos := find(subs, s); pos >= 0 { // find is a helper function
			// 4. Remove the subscription from the slice.
			if len(subs) == 1 { // If it was the last one for this type
				delete(mux.subm, typ) // Delete the type entry from map
			} else { // Otherwise, remove element from slice
				mux.subm[typ] = posdelete(subs, pos) // posdelete is a helper function posdelete
			}
			// Note: A subscription might be listed under multiple types;
			// the loop goes on and removes it from every type's slice
			// that lists it.
		}
	}
}

// find is a helper to find a subscription pointer in a slice.
func find(slice []*TypeMuxSubscription, item *TypeMuxSubscription) int {
	for i, v := range slice {
		if v == item { // Pointer comparison
			return i // Return index
		}
	}
	return -1 // Not found
}

// posdelete removes the element at index 'pos' from the slice by creating a new slice.
// Note: This allocates memory for a new slice.
func posdelete(slice []*TypeMuxSubscription, pos int) []*TypeMuxSubscription {
	news := make([]*TypeMuxSubscription, len(slice)-1) // Allocate new slice
	copy(news[:pos], slice[:pos])                      // Copy elements before pos
	copy(news[pos:], slice[pos+1:])                    // Copy elements after pos
	return news                                        // Return the new slice
}

// TypeMuxSubscription is a subscription established through TypeMux.
type TypeMuxSubscription struct {
	mux     *TypeMux      // Reference back to the parent mux
	created time.Time     // Timestamp when the subscription was created
	closeMu sync.Mutex    // Protects access to 'closed' flag and channel closing logic
	closing chan struct{} // Internal channel closed to signal termination
	closed  bool          // Flag indicating the subscription is closed

	// these two are the same channel. they are stored separately so
	// postC can be set to nil without affecting the return value of
	// Chan.
	postMu sync.RWMutex         // Protects postC during delivery and closing
	readC  <-chan *TypeMuxEvent // The channel returned to the user (read-only view)
	postC  chan<- *TypeMuxEvent // The channel used for posting internally (write-only view)
}

// newsub creates a new subscription object.
func newsub(mux *TypeMux) *TypeMuxSubscription {
	c := make(chan *TypeMuxEvent) // Create the underlying channel
	return &TypeMuxSubscription{
		mux:     mux,                 // Set parent mux
		created: time.Now(),          // Record creation time
		readC:   c,                   // Set read-only view
		postC:   c,                   // Set write-only view
		closing: make(chan struct{}), // Create closing signal channel
	}
}

// Chan returns the channel that receives events for this subscription.
func (s *TypeMuxSubscription) Chan() <-chan *TypeMuxEvent {
	return s.readC // Return the read-only channel
}

// Unsubscribe removes the subscription from the mux and closes its channel.
func (s *TypeMuxSubscription) Unsubscribe() {
	s.mux.del(s)  // Tell the mux to remove this subscription
	s.closewait() // Close the subscription's channels and mark as closed
}

// Closed returns whether the subscription has been closed.
func (s *TypeMuxSubscription) Closed() bool {
	s.closeMu.Lock()         // Lock to access 'closed' flag
	defer s.closeMu.Unlock() // Ensure unlock
	return s.closed
}

// closewait closes the subscription channels and marks it as closed. Idempotent.
func (s *TypeMuxSubscription) closewait() {
	s.closeMu.Lock()         // Lock for exclusive access
	defer s.closeMu.Unlock() // Ensure unlock
	if s.closed {            // Check if already closed
		return // Do nothing if already closed
	}
	close(s.closing) // Close the internal 'closing' signal channel
	s.closed = true  // Mark as closed

	// Lock the post channel access
	s.postMu.Lock()
	defer s.postMu.Unlock() // Ensure unlock
	// Close the actual event channel (safe due to lock)
	close(s.postC)
	// Set postC to nil to prevent further writes (although close should suffice)
	s.postC = nil
}

// deliver attempts to send an event to the subscription's channel.
// It handles potential concurrent closure and drops stale events.
func (s *TypeMuxSubscription) deliver(event *TypeMuxEvent) {
	// Short circuit delivery if stale event (event posted before subscription)
	if s.created.After(event.Time) {
		return
	}

	// Acquire read lock for post channel access. Allows concurrent deliveries
	// if the channel isn't blocked, while still coordinating with closewait.
	s.postMu.RLock()
	defer s.postMu.RUnlock() // Ensure unlock

	// Use select to attempt send or detect closure.
	select {
	case s.postC <- event: // Try sending the event
	case <-s.closing: // Abort if the 'closing' channel is closed
		// This prevents a panic if Unsubscribe/Stop runs concurrently.
	}
}
