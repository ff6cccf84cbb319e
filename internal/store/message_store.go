package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/webmail/internal/model"
)

const messageColumns = `id, owner_id, folder, from_addr, from_name,
	to_addrs, cc_addrs, bcc_addrs, subject, body,
	is_read, is_starred, thread_id, message_id_header, sent_at`

// folderClause returns the WHERE fragment selecting a folder. Starred is
// virtual: every starred message that is not in the trash.
func folderClause(folder string) (string, []any) {
	if folder == model.FolderStarred {
		return "is_starred = 1 AND folder <> ?", []any{model.FolderTrash}
	}
	return "folder = ?", []any{folder}
}

// InsertMessages stores a batch of message copies in one transaction.
// Missing IDs are generated and a zero SentAt becomes now.
func (s *SQLiteStore) InsertMessages(ctx context.Context, msgs []Message) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range msgs {
		m := &msgs[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.SentAt.IsZero() {
			m.SentAt = now
		}
		m.SentAt = m.SentAt.UTC()

		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`) VALUES (
				:id, :owner_id, :folder, :from_addr, :from_name,
				:to_addrs, :cc_addrs, :bcc_addrs, :subject, :body,
				:is_read, :is_starred, :thread_id, :message_id_header, :sent_at
			)`, m)
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

// GetMessage retrieves one of ownerID's messages.
func (s *SQLiteStore) GetMessage(ctx context.Context, ownerID, id string) (*Message, error) {
	var m Message
	err := s.db.GetContext(ctx, &m,
		"SELECT "+messageColumns+" FROM messages WHERE owner_id = ? AND id = ?",
		ownerID, id)
	if err != nil {
		return nil, notFound(err, "message %s", id)
	}
	return &m, nil
}

// ListFolder returns one page of a folder, newest first, plus the total
// number of messages in the folder.
func (s *SQLiteStore) ListFolder(
	ctx context.Context,
	ownerID, folder string,
	limit, offset int,
) ([]Message, int, error) {
	clause, args := folderClause(folder)
	where := "owner_id = ? AND " + clause
	args = append([]any{ownerID}, args...)
	return s.page(ctx, where, args, limit, offset)
}

// SearchMessages matches the query against sender, subject and body
// across every folder except trash.
func (s *SQLiteStore) SearchMessages(
	ctx context.Context,
	ownerID string,
	filter MessageFilter,
) ([]Message, int, error) {
	conditions := []string{"owner_id = ?", "folder <> ?"}
	args := []any{ownerID, model.FolderTrash}

	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + escapeLike(q) + "%"
		conditions = append(conditions, `(
			subject LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR
			from_addr LIKE ? ESCAPE '\' OR from_name LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like)
	}

	switch filter.Filter {
	case FilterUnread:
		conditions = append(conditions, "is_read = 0")
	case FilterStarred:
		conditions = append(conditions, "is_starred = 1")
	}

	return s.page(ctx, strings.Join(conditions, " AND "), args, filter.Limit, filter.Offset)
}

func (s *SQLiteStore) page(
	ctx context.Context,
	where string,
	args []any,
	limit, offset int,
) ([]Message, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM messages WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE " + where +
		" ORDER BY sent_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, max(offset, 0))
	}

	msgs := []Message{}
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("querying messages: %w", err)
	}
	return msgs, total, nil
}

// SetRead sets the read flag of one of ownerID's messages.
func (s *SQLiteStore) SetRead(ctx context.Context, ownerID, id string, read bool) error {
	return s.update(ctx, ownerID, id, "is_read = ?", boolToInt(read))
}

// ToggleStar flips the starred flag and returns the new value.
func (s *SQLiteStore) ToggleStar(ctx context.Context, ownerID, id string) (bool, error) {
	if err := s.update(ctx, ownerID, id, "is_starred = 1 - is_starred"); err != nil {
		return false, err
	}
	var starred bool
	err := s.db.GetContext(ctx, &starred,
		"SELECT is_starred FROM messages WHERE owner_id = ? AND id = ?", ownerID, id)
	if err != nil {
		return false, notFound(err, "message %s", id)
	}
	return starred, nil
}

// MoveToFolder moves one of ownerID's messages into folder.
func (s *SQLiteStore) MoveToFolder(ctx context.Context, ownerID, id, folder string) error {
	return s.update(ctx, ownerID, id, "folder = ?", folder)
}

// DeleteMessage permanently removes one of ownerID's messages.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE owner_id = ? AND id = ?", ownerID, id)
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) update(
	ctx context.Context,
	ownerID, id, set string,
	args ...any,
) error {
	args = append(args, ownerID, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE messages SET "+set+" WHERE owner_id = ? AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// Counts returns per-folder totals for ownerID. Unread counts the inbox
// only.
func (s *SQLiteStore) Counts(ctx context.Context, ownerID string) (model.Counts, error) {
	var c model.Counts
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			COALESCE(SUM(folder = 'inbox'), 0),
			COALESCE(SUM(folder = 'inbox' AND is_read = 0), 0),
			COALESCE(SUM(folder = 'sent'), 0),
			COALESCE(SUM(folder = 'drafts'), 0),
			COALESCE(SUM(folder = 'trash'), 0),
			COALESCE(SUM(is_starred = 1 AND folder <> 'trash'), 0)
		FROM messages WHERE owner_id = ?`, ownerID,
	).Scan(&c.Inbox, &c.Unread, &c.Sent, &c.Drafts, &c.Trash, &c.Starred)
	if err != nil {
		return model.Counts{}, fmt.Errorf("counting folders: %w", err)
	}
	return c, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
