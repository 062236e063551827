package repositories

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
)

var ErrUserNotFound = errors.NewSentinel("user not found")

// UserRepository persists passkey-authenticated players and their webauthn
// credentials.
type UserRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewUserRepository(dbs *sqlite.Database, logger *slog.Logger) *UserRepository {
	return &UserRepository{
		dbs:    dbs,
		logger: logger.With("source", "UserRepository"),
	}
}

// Get loads a user together with all registered credentials.
func (r *UserRepository) Get(ctx context.Context, id []byte) (*models.User, error) {
	var user models.User
	stmt := `SELECT id, display_name FROM users WHERE id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &user, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrUserNotFound, "read user",
				slog.String("user_id", hex.EncodeToString(id)))
		}
		return nil, errors.Wrap(err, "read user")
	}

	type credentialRow struct {
		ID             []byte `db:"id"`
		PublicKey      []byte `db:"public_key"`
		Attestation    string `db:"attestation_type"`
		Transport      string `db:"transport"`
		UserPresent    bool   `db:"flag_user_present"`
		UserVerified   bool   `db:"flag_user_verified"`
		BackupEligible bool   `db:"flag_backup_eligible"`
		BackupState    bool   `db:"flag_backup_state"`
		AAGUID         []byte `db:"authenticator_aaguid"`
		SignCount      uint32 `db:"authenticator_sign_count"`
		CloneWarning   bool   `db:"authenticator_clone_warning"`
		Attachment     string `db:"authenticator_attachment"`
	}
	var rows []credentialRow
	stmt = `SELECT id, public_key, attestation_type, transport, flag_user_present, flag_user_verified,
       flag_backup_eligible, flag_backup_state, authenticator_aaguid, authenticator_sign_count,
       authenticator_clone_warning, authenticator_attachment
FROM credentials WHERE user_id = ?`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, stmt, id); err != nil {
		return nil, errors.Wrap(err, "query credentials")
	}
	user.Credentials = make([]webauthn.Credential, 0, len(rows))
	for _, row := range rows {
		credential := webauthn.Credential{
			ID:              row.ID,
			PublicKey:       row.PublicKey,
			AttestationType: row.Attestation,
			Flags: webauthn.CredentialFlags{
				UserPresent:    row.UserPresent,
				UserVerified:   row.UserVerified,
				BackupEligible: row.BackupEligible,
				BackupState:    row.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				AAGUID:       row.AAGUID,
				SignCount:    row.SignCount,
				CloneWarning: row.CloneWarning,
				Attachment:   protocol.AuthenticatorAttachment(row.Attachment),
			},
		}
		if err := json.Unmarshal([]byte(row.Transport), &credential.Transport); err != nil {
			return nil, errors.Wrap(err, "JSON decode transport")
		}
		user.Credentials = append(user.Credentials, credential)
	}
	return &user, nil
}

// Exists reports whether a user with the given handle has registered.
func (r *UserRepository) Exists(ctx context.Context, id []byte) (bool, error) {
	stmt := `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`
	var exists bool
	if err := r.dbs.ReadOnly.QueryRowContext(ctx, stmt, id).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "query user exists")
	}
	return exists, nil
}

// Upsert creates or renames the user row. Credentials are written separately
// with UpsertCredential after each successful ceremony.
func (r *UserRepository) Upsert(ctx context.Context, user webauthn.User) error {
	stmt := `INSERT INTO users (id, display_name)
VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name`
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, user.WebAuthnID(), user.WebAuthnDisplayName()); err != nil {
		return errors.Wrap(err, "db upsert",
			slog.String("display_name", user.WebAuthnDisplayName()),
			slog.String("user_id", hex.EncodeToString(user.WebAuthnID())),
		)
	}
	return nil
}

// UpsertCredential stores a credential after registration or refreshes its
// flags and sign count after login.
func (r *UserRepository) UpsertCredential(ctx context.Context, userID []byte, credential *webauthn.Credential) error {
	encodedTransport, err := json.Marshal(credential.Transport)
	if err != nil {
		return errors.Wrap(err, "JSON encode transport")
	}
	stmt := `INSERT INTO credentials (id, user_id, public_key, attestation_type, transport,
       flag_user_present, flag_user_verified, flag_backup_eligible, flag_backup_state,
       authenticator_aaguid, authenticator_sign_count, authenticator_clone_warning, authenticator_attachment)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET attestation_type            = excluded.attestation_type,
                               transport                   = excluded.transport,
                               flag_user_present           = excluded.flag_user_present,
                               flag_user_verified          = excluded.flag_user_verified,
                               flag_backup_eligible        = excluded.flag_backup_eligible,
                               flag_backup_state           = excluded.flag_backup_state,
                               authenticator_aaguid        = excluded.authenticator_aaguid,
                               authenticator_sign_count    = excluded.authenticator_sign_count,
                               authenticator_clone_warning = excluded.authenticator_clone_warning,
                               authenticator_attachment    = excluded.authenticator_attachment`
	_, err = r.dbs.ReadWrite.ExecContext(ctx, stmt,
		credential.ID,
		userID,
		credential.PublicKey,
		credential.AttestationType,
		string(encodedTransport),
		credential.Flags.UserPresent,
		credential.Flags.UserVerified,
		credential.Flags.BackupEligible,
		credential.Flags.BackupState,
		credential.Authenticator.AAGUID,
		credential.Authenticator.SignCount,
		credential.Authenticator.CloneWarning,
		string(credential.Authenticator.Attachment),
	)
	if err != nil {
		return errors.Wrap(err, "db upsert credential",
			slog.String("user_id", hex.EncodeToString(userID)),
			slog.String("credential_id", hex.EncodeToString(credential.ID)),
		)
	}
	return nil
}
