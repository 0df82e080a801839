// tokenhash — утилита для генерации Argon2id хеша сервисного токена.
// Запуск: go run ./cmd/tokenhash <токен>
//
// Результат вставьте в .env как API_TOKEN_HASH.
package main

import (
	"fmt"
	"os"

	"serotonyl.ru/lingvo-backend/internal/common"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run ./cmd/tokenhash <токен>")
		os.Exit(1)
	}

	hash, err := common.HashToken(os.Args[1], common.DefaultArgon2Params)
	if err != nil {
		fmt.Printf("Ошибка хеширования: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш токена (вставьте в .env как API_TOKEN_HASH):")
	fmt.Println(hash)
}
