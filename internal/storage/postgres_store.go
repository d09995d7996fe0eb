package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/AuraReaper/voom/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trips(id, rider_id, driver_id, pickup_lat, pickup_lon, dest_lat, dest_lon,
			package_slug, fare_total, status, cancel_reason, payment_session, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.RiderID, nullable(t.DriverID),
		t.Pickup.Latitude, t.Pickup.Longitude, t.Destination.Latitude, t.Destination.Longitude,
		t.Fare.PackageSlug, t.Fare.TotalPrice, string(t.Status),
		nullable(t.CancelReason), nullable(t.PaymentSession), t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE trips SET driver_id=$1, status=$2, cancel_reason=$3, payment_session=$4, updated_at=$5
		WHERE id=$6`,
		nullable(t.DriverID), string(t.Status), nullable(t.CancelReason),
		nullable(t.PaymentSession), t.UpdatedAt, t.ID)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
