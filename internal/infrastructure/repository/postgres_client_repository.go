package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/database"
	"go.uber.org/zap"
)

// PostgresClientRepository implements domain.ClientRegistry using PostgreSQL
type PostgresClientRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewPostgresClientRepository creates a new PostgresClientRepository
func NewPostgresClientRepository(db *database.Postgres, logger *zap.Logger) *PostgresClientRepository {
	return &PostgresClientRepository{
		db:     db,
		logger: logger,
	}
}

// clientColumns holds the JSON encoded list columns of a client row
type clientColumns struct {
	scopes       []byte
	grantTypes   []byte
	redirectURIs []byte
}

func encodeClientColumns(client domain.ClientDetails) (clientColumns, error) {
	var (
		cols clientColumns
		err  error
	)
	if cols.scopes, err = json.Marshal(nonNil(client.Scopes)); err != nil {
		return cols, err
	}
	if cols.grantTypes, err = json.Marshal(nonNil(client.GrantTypes)); err != nil {
		return cols, err
	}
	if cols.redirectURIs, err = json.Marshal(nonNil(client.RedirectURIs)); err != nil {
		return cols, err
	}
	return cols, nil
}

func (c clientColumns) decode(client *domain.ClientDetails) error {
	if err := json.Unmarshal(c.scopes, &client.Scopes); err != nil {
		return err
	}
	if err := json.Unmarshal(c.grantTypes, &client.GrantTypes); err != nil {
		return err
	}
	return json.Unmarshal(c.redirectURIs, &client.RedirectURIs)
}

func (r *PostgresClientRepository) GetClientByID(ctx context.Context, clientID string) (*domain.ClientDetails, bool, error) {
	client := &domain.ClientDetails{}
	var cols clientColumns

	err := r.db.QueryRow(ctx, `
		SELECT id, secret, scopes, is_scoped, grant_types, redirect_uris, risc_uri, risc_aud
		FROM oauth2_clients WHERE id = $1
	`, clientID).Scan(&client.ClientID, &client.Secret, &cols.scopes, &client.IsScoped,
		&cols.grantTypes, &cols.redirectURIs, &client.RiscURI, &client.RiscAud)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		r.logger.Error("Failed to find client", zap.String("client_id", clientID), zap.Error(err))
		return nil, false, err
	}

	if err := cols.decode(client); err != nil {
		return nil, false, err
	}
	return client, true, nil
}

// AddClient inserts the client unless the ID is taken. The conflict check and
// the insert are one statement.
func (r *PostgresClientRepository) AddClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	if client.ClientID == "" {
		return false, domain.ErrEmptyClientID
	}

	cols, err := encodeClientColumns(client)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO oauth2_clients (id, secret, scopes, is_scoped, grant_types, redirect_uris, risc_uri, risc_aud)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, client.ClientID, client.Secret, cols.scopes, client.IsScoped, cols.grantTypes, cols.redirectURIs,
		client.RiscURI, client.RiscAud)
	if err != nil {
		r.logger.Error("Failed to add client", zap.String("client_id", client.ClientID), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresClientRepository) UpdateClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	if client.ClientID == "" {
		return false, domain.ErrEmptyClientID
	}

	cols, err := encodeClientColumns(client)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE oauth2_clients
		SET secret = $2, scopes = $3, is_scoped = $4, grant_types = $5, redirect_uris = $6,
			risc_uri = $7, risc_aud = $8, updated_at = NOW()
		WHERE id = $1
	`, client.ClientID, client.Secret, cols.scopes, client.IsScoped, cols.grantTypes, cols.redirectURIs,
		client.RiscURI, client.RiscAud)
	if err != nil {
		r.logger.Error("Failed to update client", zap.String("client_id", client.ClientID), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresClientRepository) ListClients(ctx context.Context) ([]domain.ClientDetails, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, secret, scopes, is_scoped, grant_types, redirect_uris, risc_uri, risc_aud
		FROM oauth2_clients
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []domain.ClientDetails{}
	for rows.Next() {
		var client domain.ClientDetails
		var cols clientColumns

		err := rows.Scan(&client.ClientID, &client.Secret, &cols.scopes, &client.IsScoped,
			&cols.grantTypes, &cols.redirectURIs, &client.RiscURI, &client.RiscAud)
		if err != nil {
			return nil, err
		}
		if err := cols.decode(&client); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *PostgresClientRepository) Reset(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DELETE FROM oauth2_clients")
	return err
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
