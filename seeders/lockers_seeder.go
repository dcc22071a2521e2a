package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	seedDeviceID    = "kiosk-1"
	seedLockerCount = 12
)

func seedLockers(ctx context.Context, db *pgxpool.Pool) error {
	for number := 1; number <= seedLockerCount; number++ {
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM lockers WHERE device_id = $1 AND number = $2)`,
			seedDeviceID, number,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("ошибка проверки ячейки %d: %w", number, err)
		}
		if exists {
			continue
		}

		_, err = db.Exec(ctx, `
			INSERT INTO lockers (id, number, device_id, status)
			VALUES ($1, $2, $3, 'FREE')`,
			uuid.NewString(), number, seedDeviceID,
		)
		if err != nil {
			return fmt.Errorf("ошибка создания ячейки %d: %w", number, err)
		}
	}
	log.Printf("   + ячейки 1..%d на контроллере %s", seedLockerCount, seedDeviceID)
	return nil
}
