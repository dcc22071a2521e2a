package seeders

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"lockbox/internal/entities"
	"lockbox/internal/services"
)

func seedSettings(ctx context.Context, db *pgxpool.Pool) error {
	defaults := map[string]string{
		"grace_period_minutes:" + string(entities.TariffCodeHourly): strconv.Itoa(services.DefaultGraceHourlyMinutes),
		"grace_period_minutes:" + string(entities.TariffCodeDaily):  strconv.Itoa(services.DefaultGraceDailyMinutes),
	}

	for key, value := range defaults {
		_, err := db.Exec(ctx, `
			INSERT INTO settings (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("ошибка создания настройки %s: %w", key, err)
		}
	}
	log.Println("   + льготные периоды по умолчанию")
	return nil
}
