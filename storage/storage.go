package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"travelbuddy-api/domain"
)

// queueClient is the slice of azqueue.QueueClient the storage layer
// needs. Tests substitute a fake.
type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage holds the per-user checklist table and the activity queue.
// It implements domain.Store; the table is the remote source of truth,
// partitioned by user id with store-assigned row keys.
type Storage struct {
	checklistTable *aztables.Client
	activityQueue  queueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, checklistsTable, activityQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	ct := svc.NewClient(checklistsTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	aq, err := azqueue.NewQueueClientFromConnectionString(connStr, activityQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{checklistTable: ct, activityQueue: aq}, nil
}

// checklistEntity is the flat table shape. Table properties are scalar,
// so the ordered item list and the collaborator set ride as JSON
// strings.
type checklistEntity struct {
	aztables.Entity
	ETag       string `json:"odata.etag,omitempty"`
	Title      string `json:"Title"`
	Category   string `json:"Category"`
	Items      string `json:"Items"`
	SharedWith string `json:"SharedWith"`
}

func encodeEntity(userID, id string, c domain.Checklist) ([]byte, error) {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return nil, err
	}
	shared, err := json.Marshal(c.Collaborators)
	if err != nil {
		return nil, err
	}
	return json.Marshal(checklistEntity{
		Entity:     aztables.Entity{PartitionKey: userID, RowKey: id},
		Title:      c.Title,
		Category:   string(c.Category),
		Items:      string(items),
		SharedWith: string(shared),
	})
}

func decodeEntity(data []byte) (domain.Checklist, string, error) {
	var ent checklistEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Checklist{}, "", err
	}
	c := domain.Checklist{
		ID:       ent.RowKey,
		Title:    ent.Title,
		Category: domain.Category(ent.Category),
	}
	if ent.Items != "" {
		if err := json.Unmarshal([]byte(ent.Items), &c.Items); err != nil {
			return domain.Checklist{}, "", fmt.Errorf("checklist %s: bad items column: %w", ent.RowKey, err)
		}
	}
	if ent.SharedWith != "" {
		if err := json.Unmarshal([]byte(ent.SharedWith), &c.Collaborators); err != nil {
			return domain.Checklist{}, "", fmt.Errorf("checklist %s: bad sharedWith column: %w", ent.RowKey, err)
		}
	}
	c.Normalize()
	return c, ent.ETag, nil
}

func partitionFilter(userID string) string {
	return "PartitionKey eq '" + escapeKey(userID) + "'"
}

func titleFilter(userID, title string) string {
	return partitionFilter(userID) + " and Title eq '" + escapeKey(title) + "'"
}

// escapeKey doubles single quotes per the OData filter grammar.
func escapeKey(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// ListChecklists retrieves every checklist in the user's partition.
func (s *Storage) ListChecklists(ctx context.Context, userID string) ([]domain.Checklist, error) {
	filter := partitionFilter(userID)
	pager := s.checklistTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	lists := []domain.Checklist{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			c, _, err := decodeEntity(e)
			if err != nil {
				return nil, err
			}
			lists = append(lists, c)
		}
	}
	return lists, nil
}

// GetChecklist retrieves a single checklist, or nil when absent.
func (s *Storage) GetChecklist(ctx context.Context, userID, id string) (*domain.Checklist, error) {
	ent, err := s.checklistTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, nil
		}
		return nil, err
	}
	c, _, err := decodeEntity(ent.Value)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChecklist persists a new document under a fresh row key and
// returns the assigned id.
func (s *Storage) CreateChecklist(ctx context.Context, userID string, c domain.Checklist) (string, error) {
	id := uuid.NewString()
	payload, err := encodeEntity(userID, id, c)
	if err != nil {
		return "", err
	}
	if _, err := s.checklistTable.AddEntity(ctx, payload, nil); err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceChecklist writes the whole entity over the document with the
// given id, creating it when absent.
func (s *Storage) ReplaceChecklist(ctx context.Context, userID, id string, c domain.Checklist) error {
	payload, err := encodeEntity(userID, id, c)
	if err != nil {
		return err
	}
	_, err = s.checklistTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// DeleteChecklist removes the document with the given id. A document
// that is already gone is not an error.
func (s *Storage) DeleteChecklist(ctx context.Context, userID, id string) error {
	_, err := s.checklistTable.DeleteEntity(ctx, userID, id, nil)
	if err != nil && isStatus(err, 404) {
		return nil
	}
	return err
}

// DeleteChecklistsByTitle removes every document whose title matches
// and reports how many were affected. This is the legacy title-keyed
// path: same-titled documents all go.
func (s *Storage) DeleteChecklistsByTitle(ctx context.Context, userID, title string) (int, error) {
	filter := titleFilter(userID, title)
	pager := s.checklistTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	ids := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, e := range resp.Entities {
			var ent checklistEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return 0, err
			}
			ids = append(ids, ent.RowKey)
		}
	}
	removed := 0
	for _, id := range ids {
		if err := s.DeleteChecklist(ctx, userID, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// AddCollaborator unions the identity into the document's collaborator
// set. Present identities are left as they are.
func (s *Storage) AddCollaborator(ctx context.Context, userID, id, identity string) error {
	return s.mutateCollaborators(ctx, userID, id, func(set []string) ([]string, bool) {
		for _, existing := range set {
			if existing == identity {
				return set, false
			}
		}
		return append(set, identity), true
	})
}

// RemoveCollaborator drops the identity from the set, a no-op when
// absent.
func (s *Storage) RemoveCollaborator(ctx context.Context, userID, id, identity string) error {
	return s.mutateCollaborators(ctx, userID, id, func(set []string) ([]string, bool) {
		for i, existing := range set {
			if existing == identity {
				return append(set[:i], set[i+1:]...), true
			}
		}
		return set, false
	})
}

// collaboratorUpdate carries the single merged column.
type collaboratorUpdate struct {
	aztables.Entity
	SharedWith string `json:"SharedWith"`
}

func (s *Storage) mutateCollaborators(ctx context.Context, userID, id string, apply func([]string) ([]string, bool)) error {
	for {
		ent, err := s.checklistTable.GetEntity(ctx, userID, id, nil)
		if err != nil {
			if isStatus(err, 404) {
				return domain.ErrNotFound
			}
			return err
		}
		c, etag, err := decodeEntity(ent.Value)
		if err != nil {
			return err
		}
		next, changed := apply(c.Collaborators)
		if !changed {
			return nil
		}
		shared, err := json.Marshal(next)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(collaboratorUpdate{
			Entity:     aztables.Entity{PartitionKey: userID, RowKey: id},
			SharedWith: string(shared),
		})
		if err != nil {
			return err
		}
		et := azcore.ETag(etag)
		_, err = s.checklistTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
		if err == nil {
			return nil
		}
		// Lost the race against a concurrent writer; re-read and reapply.
		if isStatus(err, 412) || isStatus(err, 409) {
			continue
		}
		return err
	}
}
