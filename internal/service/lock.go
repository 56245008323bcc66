package service

import "sync"

// caseLocks keys one mutex per case id. Every reload-save cycle that runs off
// the request path (classification callbacks, worker-side event handlers)
// takes the case's lock so concurrent saves cannot overwrite each other.
var caseLocks sync.Map

func lockCase(caseID string) func() {
	v, _ := caseLocks.LoadOrStore(caseID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
