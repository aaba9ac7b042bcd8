// Package store persists users, chats and messages in a single Bigtable
// table. Entities are sparse rows keyed "<kind>#<id>" with entity fields in
// a per-kind data family and created_at/updated_at in a shared metadata
// family. All cell values are text. There are no secondary indexes:
// find-by-attribute operations scan a kind's key range and filter
// client-side, which is O(rows of that kind) and acceptable at the data
// volumes this service is built for.
package store

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"cloud.google.com/go/bigtable"
	"google.golang.org/api/option"
)

// Column family names. Each family keeps at most one cell version; the
// domain has no use for history.
const (
	userDataFamily    = "user_data"
	chatDataFamily    = "chat_data"
	messageDataFamily = "message_data"
	metadataFamily    = "metadata"
)

var allFamilies = []string{userDataFamily, chatDataFamily, messageDataFamily, metadataFamily}

// BigtableStore is the process-wide handle to the backing table. It is
// created once at startup, shared read/write by every request, and holds no
// locks of its own: per-row commits are atomic (Bigtable's native
// guarantee) and nothing here spans rows atomically.
type BigtableStore struct {
	client *bigtable.Client
	table  *bigtable.Table

	project  string
	instance string
	tableID  string
	opts     []option.ClientOption

	ids idGenerator
	now func() time.Time
}

func NewBigtableStore(ctx context.Context, project, instance, tableID string, opts ...option.ClientOption) (*BigtableStore, error) {
	client, err := bigtable.NewClient(ctx, project, instance, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigtable client: %w", err)
	}

	return &BigtableStore{
		client:   client,
		table:    client.Open(tableID),
		project:  project,
		instance: instance,
		tableID:  tableID,
		opts:     opts,
		now:      time.Now,
	}, nil
}

func (s *BigtableStore) Close() error {
	return s.client.Close()
}

// EnsureSchema creates the table and its column families if they do not
// exist yet. It must complete before the first request is served, and it is
// deliberately non-fatal: the table may be provisioned out-of-band, and
// several instances may race to create it at startup. Neither case should
// take any process down, so failures are logged and swallowed.
func (s *BigtableStore) EnsureSchema(ctx context.Context) {
	admin, err := bigtable.NewAdminClient(ctx, s.project, s.instance, s.opts...)
	if err != nil {
		log.Printf("Schema bootstrap skipped, admin client unavailable: %v", err)
		return
	}
	defer admin.Close()

	tables, err := admin.Tables(ctx)
	if err != nil {
		log.Printf("Schema bootstrap: listing tables failed: %v", err)
		return
	}
	if slices.Contains(tables, s.tableID) {
		log.Printf("Bigtable table %q already exists", s.tableID)
		return
	}

	if err := admin.CreateTable(ctx, s.tableID); err != nil {
		log.Printf("Schema bootstrap: creating table %q failed (continuing, a peer may have won the race): %v", s.tableID, err)
		return
	}
	for _, family := range allFamilies {
		if err := admin.CreateColumnFamily(ctx, s.tableID, family); err != nil {
			log.Printf("Schema bootstrap: creating column family %q failed: %v", family, err)
			continue
		}
		if err := admin.SetGCPolicy(ctx, s.tableID, family, bigtable.MaxVersionsPolicy(1)); err != nil {
			log.Printf("Schema bootstrap: setting GC policy on %q failed: %v", family, err)
		}
	}
	log.Printf("Created Bigtable table %q", s.tableID)
}
