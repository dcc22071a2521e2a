package seeders

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"lockbox/pkg/config"
)

type staffSeed struct {
	PhoneEnv    string
	PasswordEnv string
	Role        string
	DefPhone    string
}

var staffUsers = []staffSeed{
	{PhoneEnv: "SEED_ADMIN_PHONE", PasswordEnv: "SEED_ADMIN_PASSWORD", Role: "ADMIN", DefPhone: "+70000000001"},
	{PhoneEnv: "SEED_MANAGER_PHONE", PasswordEnv: "SEED_MANAGER_PASSWORD", Role: "MANAGER", DefPhone: "+70000000002"},
}

func seedStaffUsers(ctx context.Context, db *pgxpool.Pool, _ *config.Config) error {
	for _, s := range staffUsers {
		phone := os.Getenv(s.PhoneEnv)
		if phone == "" {
			phone = s.DefPhone
		}
		password := os.Getenv(s.PasswordEnv)
		if password == "" {
			log.Printf("   - %s пропущен: переменная %s не задана", s.Role, s.PasswordEnv)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("ошибка хеширования пароля для %s: %w", s.Role, err)
		}

		_, err = db.Exec(ctx, `
			INSERT INTO users (id, phone, role, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (phone) DO UPDATE SET role = EXCLUDED.role, password_hash = EXCLUDED.password_hash`,
			uuid.NewString(), phone, s.Role, string(hash),
		)
		if err != nil {
			return fmt.Errorf("ошибка создания пользователя %s: %w", s.Role, err)
		}
		log.Printf("   + %s (%s)", s.Role, phone)
	}
	return nil
}
