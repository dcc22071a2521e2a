package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"lockbox/pkg/config"
)

// SeedCoreDictionaries наполняет справочники, без которых киоск не работает:
// тарифы, ячейки и настройки льготных периодов.
func SeedCoreDictionaries(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения базовых справочников...")

	if err := seedTariffs(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Тарифов: %v", err)
	}
	if err := seedLockers(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Ячеек: %v", err)
	}
	if err := seedSettings(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Настроек: %v", err)
	}
	log.Println("✅ Наполнение базовых справочников завершено!")
}

// SeedStaff создаёт служебные учётные записи менеджера и администратора.
func SeedStaff(db *pgxpool.Pool, cfg *config.Config) {
	ctx := context.Background()
	log.Println("▶️  Запуск создания служебных пользователей...")

	if err := seedStaffUsers(ctx, db, cfg); err != nil {
		log.Fatalf("❌ Ошибка создания служебных пользователей: %v", err)
	}

	log.Println("✅ Создание служебных пользователей завершено!")
}
