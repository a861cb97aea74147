package memory

import (
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

//Repository keeps transcriptions in process memory.
//Stored values are copies: Save clones the argument, Get and List return clones.
type Repository struct {
	lock    sync.RWMutex
	data    map[string]*transcription.Transcription
	order   []string
	claimed map[string]bool
}

//NewRepository creates an empty repository
func NewRepository() *Repository {
	cmdapp.Log.Info("Init in-memory transcription repository")
	return &Repository{data: make(map[string]*transcription.Transcription), claimed: make(map[string]bool)}
}

//Save upserts the transcription by ID
func (r *Repository) Save(t *transcription.Transcription) error {
	if t == nil || t.ID == "" {
		return errors.New("No transcription ID")
	}
	c := t.Clone()
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.data[c.ID]; !found {
		r.order = append(r.order, c.ID)
	}
	r.data[c.ID] = c
	return nil
}

//Get returns a snapshot or nil if there is no such ID
func (r *Repository) Get(ID string) (*transcription.Transcription, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.data[ID].Clone(), nil
}

//List returns snapshots of all transcriptions in insertion order
func (r *Repository) List() ([]*transcription.Transcription, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	res := make([]*transcription.Transcription, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.data[id].Clone())
	}
	return res, nil
}

//Delete removes the transcription, returns true if it existed
func (r *Repository) Delete(ID string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.data[ID]; !found {
		return false, nil
	}
	delete(r.data, ID)
	delete(r.claimed, ID)
	for i, id := range r.order {
		if id == ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

//Claim marks the transcription as taken by a pipeline.
//Returns false if the ID is unknown or already claimed.
func (r *Repository) Claim(ID string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.data[ID]; !found || r.claimed[ID] {
		return false, nil
	}
	r.claimed[ID] = true
	return true, nil
}
