package storage

import (
	"encoding/json"
	"testing"

	"travelbuddy-api/domain"
)

func TestEntityEncodeDecodeRoundTrip(t *testing.T) {
	orig := domain.Checklist{
		Title:    "Trip",
		Category: domain.CategoryShared,
		Items: []domain.Item{
			{Text: "Documents", Checked: domain.CheckNone},
			{Text: "Passport", Checked: domain.CheckOff},
			{Text: "Tickets", Checked: domain.CheckOn},
		},
		Collaborators: []string{"a@x.com", "b@x.com"},
	}

	payload, err := encodeEntity("user-1", "row-1", orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var ent checklistEntity
	if err := json.Unmarshal(payload, &ent); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if ent.PartitionKey != "user-1" || ent.RowKey != "row-1" {
		t.Fatalf("unexpected keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}

	got, _, err := decodeEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "row-1" || got.Title != orig.Title || got.Category != orig.Category {
		t.Fatalf("unexpected checklist: %+v", got)
	}
	if len(got.Items) != 3 {
		t.Fatalf("items lost in round trip: %+v", got.Items)
	}
	for i := range orig.Items {
		if got.Items[i] != orig.Items[i] {
			t.Fatalf("item %d changed: %+v -> %+v", i, orig.Items[i], got.Items[i])
		}
	}
	if len(got.Collaborators) != 2 {
		t.Fatalf("collaborators lost: %v", got.Collaborators)
	}
}

func TestDecodeEntityNormalizesPersonal(t *testing.T) {
	payload, err := encodeEntity("user-1", "row-1", domain.Checklist{
		Title:         "Packing",
		Category:      domain.CategoryPersonal,
		Collaborators: []string{"ghost@x.com"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, _, err := decodeEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Collaborators) != 0 {
		t.Fatalf("personal checklist decoded with collaborators: %v", got.Collaborators)
	}
}

func TestDecodeEntityKeepsETag(t *testing.T) {
	raw := []byte(`{"odata.etag":"W/\"datetime'2024-01-01T00%3A00%3A00Z'\"","PartitionKey":"u1","RowKey":"r1","Title":"Trip","Category":"shared","Items":"[]","SharedWith":"[\"a@x.com\"]"}`)
	got, etag, err := decodeEntity(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if etag == "" {
		t.Fatal("etag dropped")
	}
	if len(got.Collaborators) != 1 || got.Collaborators[0] != "a@x.com" {
		t.Fatalf("unexpected collaborators: %v", got.Collaborators)
	}
}

func TestDecodeEntityRejectsBadItemsColumn(t *testing.T) {
	raw := []byte(`{"PartitionKey":"u1","RowKey":"r1","Title":"Trip","Category":"personal","Items":"not json","SharedWith":""}`)
	if _, _, err := decodeEntity(raw); err == nil {
		t.Fatal("expected error for corrupt items column")
	}
}

func TestFilters(t *testing.T) {
	if got := partitionFilter("auth0|abc"); got != "PartitionKey eq 'auth0|abc'" {
		t.Fatalf("partition filter: %s", got)
	}
	if got := titleFilter("u1", "Bob's Trip"); got != "PartitionKey eq 'u1' and Title eq 'Bob''s Trip'" {
		t.Fatalf("title filter: %s", got)
	}
}
