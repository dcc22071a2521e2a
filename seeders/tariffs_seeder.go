package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type tariffSeed struct {
	Code            string
	Name            string
	PriceRub        int
	DurationMinutes int
}

var defaultTariffs = []tariffSeed{
	{Code: "HOURLY", Name: "Почасовой", PriceRub: 200, DurationMinutes: 60},
	{Code: "DAILY", Name: "Суточный", PriceRub: 1000, DurationMinutes: 1440},
}

func seedTariffs(ctx context.Context, db *pgxpool.Pool) error {
	for _, t := range defaultTariffs {
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tariffs WHERE code = $1)`, t.Code,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("ошибка проверки тарифа %s: %w", t.Code, err)
		}
		if exists {
			continue
		}

		_, err = db.Exec(ctx, `
			INSERT INTO tariffs (id, code, name, price_rub, duration_minutes, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)`,
			uuid.NewString(), t.Code, t.Name, t.PriceRub, t.DurationMinutes,
		)
		if err != nil {
			return fmt.Errorf("ошибка создания тарифа %s: %w", t.Code, err)
		}
		log.Printf("   + тариф %s (%d ₽ / %d мин)", t.Code, t.PriceRub, t.DurationMinutes)
	}
	return nil
}
