package postgres

import (
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype/zeronull"

	"github.com/stayware/identity-context-service/infra/db/pg"
	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/store"
)

const (
	tbl_profile   = "stayware.user_profile"
	tbl_workspace = "stayware.workspace"
	tbl_context   = "stayware.user_context"
	tbl_role      = "stayware.role"
	tbl_admin     = "stayware.platform_admin"
)

type DirectoryStore struct {
	db *pg.DB
}

func NewDirectoryStore(db *pg.DB) *DirectoryStore {
	return &DirectoryStore{
		db: db,
	}
}

var _ store.DirectoryStore = (*DirectoryStore)(nil)

func (c *DirectoryStore) GetUserProfile(req store.ProfileRequest) (*model.UserIdentity, error) {

	query, args := `
	SELECT
	-----------------------------
		u.id, u."name"
	, u.email, u.phone
	, u.avatar_url
	-----------------------------
	, u.theme, u.locale
	, u.default_context_id
	, u.notify_email, u.notify_whatsapp
	-----------------------------
	, u.created_at, u.updated_at
	FROM `+tbl_profile+` u
	WHERE u.id = @user_id
	`, pgx.NamedArgs{
		"user_id": req.UserId,
	}

	rows, err := c.db.Client().Query(
		req.Context, query, args,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	if !rows.Next() {
		// Not Found
		return nil, rows.Err()
	}

	row := new(model.UserIdentity)
	err = rows.Scan(
		&row.Id,
		(*zeronull.Text)(&row.Name),
		(*zeronull.Text)(&row.Email),
		(*zeronull.Text)(&row.Phone),
		(*zeronull.Text)(&row.AvatarURL),
		(*zeronull.Text)(&row.Prefs.Theme),
		(*zeronull.Text)(&row.Prefs.Locale),
		(*zeronull.Text)(&row.Prefs.DefaultContextId),
		&row.Prefs.NotifyEmail,
		&row.Prefs.NotifyWhatsApp,
		&row.CreatedAt,
		&row.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return row, rows.Err()
}

func (c *DirectoryStore) GetUserContexts(req store.ContextListRequest) (*model.ContextList, error) {

	// Aggregated: workspace + role + permissions resolved here,
	// NOT lazily, so permission checks never perform I/O.
	query, args := `
	SELECT
	-----------------------------
		x.id, x.user_id, x.workspace_id
	, x."type", x.role_id, x.entity_id
	, x.is_active, x.is_default
	, x.last_accessed_at, x.access_count
	-----------------------------
	, w."name", w.logo_url
	-----------------------------
	, r."name", r.permissions
	-----------------------------
	FROM `+tbl_context+` x
	JOIN `+tbl_workspace+` w ON w.id = x.workspace_id AND w.is_active
	LEFT JOIN `+tbl_role+` r ON r.id = x.role_id -- staff only
	`, pgx.NamedArgs{}

	// FILTER(s)
	var where []string
	where = append(where, "x.is_active")
	if req.UserId != "" {
		args["user_id"] = req.UserId
		where = append(where, "x.user_id = @user_id")
	}

	// WHERE: APPLY
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY x.is_default DESC, x.created_at"

	// OFFSET .. LIMIT
	if req.Page > 1 && req.Size > 0 {
		OFFSET := uint64((req.Page - 1) * req.Size)
		query += " OFFSET " + strconv.FormatUint(OFFSET, 10)
	}
	if req.Size > 0 {
		LIMIT := uint64(req.Size + 1)
		query += " LIMIT " + strconv.FormatUint(LIMIT, 10)
	}

	// PERFORM
	rows, err := c.db.Client().Query(
		req.Context, query, args,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	// FETCH
	list := &model.ContextList{
		Page: req.Page,
	}
	for rows.Next() {
		row := new(model.Context)
		var accessedAt zeronull.Timestamptz
		err = rows.Scan(
			&row.Id,
			&row.UserId,
			&row.WorkspaceId,
			(*string)(&row.Type),
			(*zeronull.Text)(&row.RoleId),
			(*zeronull.Text)(&row.EntityId),
			&row.Active,
			&row.Default,
			&accessedAt,
			&row.AccessCount,
			(*zeronull.Text)(&row.WorkspaceName),
			(*zeronull.Text)(&row.WorkspaceLogo),
			(*zeronull.Text)(&row.RoleName),
			&row.Permissions,
		)
		if err != nil {
			return nil, err
		}
		if date := time.Time(accessedAt); !date.IsZero() {
			row.LastAccessedAt = &date
		}
		list.Data = append(list.Data, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// extra row fetched ; next page available
	if req.Size > 0 && len(list.Data) > req.Size {
		list.Data = list.Data[:req.Size]
		list.Next = req.Page + 1
	}
	list.Total = len(list.Data)

	return list, nil
}

func (c *DirectoryStore) CheckPlatformAdmin(req store.AdminCheckRequest) (bool, error) {

	// Row-existence check. Row-level rules scope visibility to the
	// caller's own membership row ; absence implies non-admin.
	query, args := `
	SELECT EXISTS (
		SELECT FROM `+tbl_admin+` p
		WHERE p.user_id = @user_id
	)
	`, pgx.NamedArgs{
		"user_id": req.UserId,
	}

	var admin bool
	err := c.db.Client().QueryRow(
		req.Context, query, args,
	).Scan(&admin)

	if err != nil {
		return false, err
	}

	return admin, nil
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (c *DirectoryStore) SwitchContext(req store.SwitchContextRequest) error {

	if req.ToContextId == "" {
		return errors.ErrUnknown(
			errors.Message("directory: switch target required"),
		)
	}

	// access-count bookkeeping ; acknowledged BEFORE local commit
	query, args, err := psql.
		Update(tbl_context).
		Set("last_accessed_at", model.LocalTime.Now()).
		Set("access_count", sq.Expr("access_count + 1")).
		Where(sq.Eq{
			"id":        req.ToContextId,
			"user_id":   req.UserId,
			"is_active": true,
		}).
		ToSql()

	if err != nil {
		return err
	}

	ack, err := c.db.Client().Exec(
		req.Context, query, args...,
	)

	if err != nil {
		return err
	}

	if ack.RowsAffected() != 1 {
		return errors.ErrUnknown(
			errors.Message("directory: context( %s ); not found", req.ToContextId),
		)
	}

	return nil
}

func (c *DirectoryStore) SetDefaultContext(req store.SetDefaultContextRequest) error {

	tx, err := c.db.Client().Begin(req.Context)
	if err != nil {
		return err
	}
	defer tx.Rollback(req.Context)

	// drop the previous default flag(s)
	query, args, err := psql.
		Update(tbl_context).
		Set("is_default", false).
		Where(sq.Eq{
			"user_id":    req.UserId,
			"is_default": true,
		}).
		ToSql()

	if err != nil {
		return err
	}

	if _, err = tx.Exec(req.Context, query, args...); err != nil {
		return err
	}

	query, args, err = psql.
		Update(tbl_context).
		Set("is_default", true).
		Where(sq.Eq{
			"id":        req.ContextId,
			"user_id":   req.UserId,
			"is_active": true,
		}).
		ToSql()

	if err != nil {
		return err
	}

	ack, err := tx.Exec(req.Context, query, args...)
	if err != nil {
		return err
	}

	if ack.RowsAffected() != 1 {
		return errors.ErrUnknown(
			errors.Message("directory: context( %s ); not found", req.ContextId),
		)
	}

	return tx.Commit(req.Context)
}
