package interview

import (
	"context"
	"errors"

	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// SessionStore persists interview lifecycle state.
type SessionStore interface {
	// GetSession returns ok=false when the session is unknown.
	GetSession(ctx context.Context, id string) (*models.InterviewSession, bool, error)
	SaveSession(ctx context.Context, sess *models.InterviewSession) error
}

// ObjectSessions keeps session state in the object store next to the session's artifacts.
type ObjectSessions struct {
	store objstore.Store
}

// NewObjectSessions creates a session store backed by store.
func NewObjectSessions(store objstore.Store) *ObjectSessions {
	return &ObjectSessions{store: store}
}

func (o *ObjectSessions) GetSession(ctx context.Context, id string) (*models.InterviewSession, bool, error) {
	var sess models.InterviewSession
	err := objstore.GetJSON(ctx, o.store, objstore.SessionPath(id), &sess)
	if errors.Is(err, objstore.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &sess, true, nil
}

func (o *ObjectSessions) SaveSession(ctx context.Context, sess *models.InterviewSession) error {
	return objstore.PutJSON(ctx, o.store, objstore.SessionPath(sess.ID), sess)
}
