package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

type FormSettingsRepository interface {
	GetByPresetID(ctx context.Context, presetID int64) (*model.FormSettings, error)
	GetByID(ctx context.Context, id int64) (*model.FormSettings, error)
	List(ctx context.Context) ([]model.FormSettings, error)
	Create(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error
	Update(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error
	UpsertByPresetID(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) error
}

type FormSettingsRepositoryImpl struct {
	db *DB
}

func NewFormSettingsRepository(db *DB) *FormSettingsRepositoryImpl {
	return &FormSettingsRepositoryImpl{db: db}
}

const formSettingsColumns = `id, preset_id, show_price, require_phone, require_furigana, allow_notes,
	is_enabled, enable_gender, enable_birthday, enable_address, custom_message, created_at, updated_at`

// GetByPresetID はプリセットのフォーム設定を取得します
// 過去データで同じプリセットに複数行ある場合は最新のものを返します
func (r *FormSettingsRepositoryImpl) GetByPresetID(ctx context.Context, presetID int64) (_ *model.FormSettings, err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.GetByPresetID")
	defer func() { end(err) }()

	var settings model.FormSettings
	query := `SELECT ` + formSettingsColumns + ` FROM form_settings WHERE preset_id = $1 ORDER BY id DESC LIMIT 1`
	if err = sqlx.GetContext(ctx, r.db, &settings, query, presetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get form settings of preset %d: %w", presetID, err)
	}
	return &settings, nil
}

func (r *FormSettingsRepositoryImpl) GetByID(ctx context.Context, id int64) (_ *model.FormSettings, err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.GetByID")
	defer func() { end(err) }()

	var settings model.FormSettings
	query := `SELECT ` + formSettingsColumns + ` FROM form_settings WHERE id = $1`
	if err = sqlx.GetContext(ctx, r.db, &settings, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get form settings %d: %w", id, err)
	}
	return &settings, nil
}

func (r *FormSettingsRepositoryImpl) List(ctx context.Context) (_ []model.FormSettings, err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.List")
	defer func() { end(err) }()

	list := []model.FormSettings{}
	query := `SELECT ` + formSettingsColumns + ` FROM form_settings ORDER BY preset_id ASC, id DESC`
	if err = sqlx.SelectContext(ctx, r.db, &list, query); err != nil {
		return nil, fmt.Errorf("failed to list form settings: %w", err)
	}
	return list, nil
}

// Create はフォーム設定を登録し、採番されたIDと日時を設定します
func (r *FormSettingsRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) (err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.Create")
	defer func() { end(err) }()

	now := time.Now()
	settings.CreatedAt = now
	settings.UpdatedAt = now

	query := `
		INSERT INTO form_settings (
			preset_id, show_price, require_phone, require_furigana, allow_notes,
			is_enabled, enable_gender, enable_birthday, enable_address, custom_message,
			created_at, updated_at
		) VALUES (
			:preset_id, :show_price, :require_phone, :require_furigana, :allow_notes,
			:is_enabled, :enable_gender, :enable_birthday, :enable_address, :custom_message,
			:created_at, :updated_at
		)
		RETURNING id`

	q := r.db.ext(tx)
	bound, args, err := q.BindNamed(query, settings)
	if err != nil {
		return fmt.Errorf("failed to bind form settings: %w", err)
	}
	if err = q.QueryRowxContext(ctx, bound, args...).Scan(&settings.ID); err != nil {
		return fmt.Errorf("failed to create form settings: %w", err)
	}
	return nil
}

// Update はIDを指定してフォーム設定を更新します
func (r *FormSettingsRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) (err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.Update")
	defer func() { end(err) }()

	settings.UpdatedAt = time.Now()
	result, err := sqlx.NamedExecContext(ctx, r.db.ext(tx), updateFormSettingsQuery(`id = :id`), settings)
	if err != nil {
		return fmt.Errorf("failed to update form settings %d: %w", settings.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByPresetID はプリセットのフォーム設定を更新し、存在しない場合は登録します
func (r *FormSettingsRepositoryImpl) UpsertByPresetID(ctx context.Context, tx *sqlx.Tx, settings *model.FormSettings) (err error) {
	ctx, end := tracing.Start(ctx, "FormSettingsRepository.UpsertByPresetID")
	defer func() { end(err) }()

	settings.UpdatedAt = time.Now()
	result, err := sqlx.NamedExecContext(ctx, r.db.ext(tx), updateFormSettingsQuery(`preset_id = :preset_id`), settings)
	if err != nil {
		return fmt.Errorf("failed to update form settings of preset %d: %w", settings.PresetID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	return r.Create(ctx, tx, settings)
}

func updateFormSettingsQuery(where string) string {
	return `
		UPDATE form_settings SET
			show_price = :show_price,
			require_phone = :require_phone,
			require_furigana = :require_furigana,
			allow_notes = :allow_notes,
			is_enabled = :is_enabled,
			enable_gender = :enable_gender,
			enable_birthday = :enable_birthday,
			enable_address = :enable_address,
			custom_message = :custom_message,
			updated_at = :updated_at
		WHERE ` + where
}
