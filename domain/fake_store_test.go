package domain

import (
	"context"
	"errors"
	"strconv"
)

// fakeStore is an in-memory Store with per-operation failure injection.
// Documents keep insertion order so listing mirrors server order.
type fakeStore struct {
	docs   []Checklist
	nextID int

	listErr    error
	getErr     error
	createErr  error
	replaceErr error
	deleteErr  error
	collabErr  error

	listCalls   int
	deleteCalls int
}

func (f *fakeStore) ListChecklists(ctx context.Context, userID string) ([]Checklist, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Checklist, len(f.docs))
	for i := range f.docs {
		out[i] = f.docs[i].Clone()
	}
	return out, nil
}

func (f *fakeStore) GetChecklist(ctx context.Context, userID, id string) (*Checklist, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.docs {
		if f.docs[i].ID == id {
			c := f.docs[i].Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateChecklist(ctx context.Context, userID string, c Checklist) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	c.ID = "id-" + strconv.Itoa(f.nextID)
	f.docs = append(f.docs, c.Clone())
	return c.ID, nil
}

func (f *fakeStore) ReplaceChecklist(ctx context.Context, userID, id string, c Checklist) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	c.ID = id
	for i := range f.docs {
		if f.docs[i].ID == id {
			f.docs[i] = c.Clone()
			return nil
		}
	}
	f.docs = append(f.docs, c.Clone())
	return nil
}

func (f *fakeStore) DeleteChecklist(ctx context.Context, userID, id string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.docs {
		if f.docs[i].ID == id {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteChecklistsByTitle(ctx context.Context, userID, title string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	kept := f.docs[:0]
	removed := 0
	for _, d := range f.docs {
		if d.Title == title {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	f.docs = kept
	return removed, nil
}

func (f *fakeStore) AddCollaborator(ctx context.Context, userID, id, identity string) error {
	if f.collabErr != nil {
		return f.collabErr
	}
	doc := f.find(id)
	if doc == nil {
		return ErrNotFound
	}
	for _, existing := range doc.Collaborators {
		if existing == identity {
			return nil
		}
	}
	doc.Collaborators = append(doc.Collaborators, identity)
	return nil
}

func (f *fakeStore) RemoveCollaborator(ctx context.Context, userID, id, identity string) error {
	if f.collabErr != nil {
		return f.collabErr
	}
	doc := f.find(id)
	if doc == nil {
		return ErrNotFound
	}
	for i, existing := range doc.Collaborators {
		if existing == identity {
			doc.Collaborators = append(doc.Collaborators[:i], doc.Collaborators[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) find(id string) *Checklist {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i]
		}
	}
	return nil
}

var errDown = errors.New("storage down")
