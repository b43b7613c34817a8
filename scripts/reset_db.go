package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
)

// 破坏性重置：清掉版本标记后重新初始化客户端，
// 所有集合被种子数据整体覆盖。
func main() {
	cfg := config.LoadConfig()

	driver := cfg.StorageDriver
	if len(os.Args) > 1 {
		driver = os.Args[1]
	}

	fmt.Printf("🔗 Opening %s storage\n", driver)

	storage, err := database.NewStorage(database.StorageConfig{
		Driver:      driver,
		DataDir:     cfg.DataDir,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer storage.Close()

	if err := database.ClearVersionMarker(storage); err != nil {
		log.Fatalf("❌ Failed to clear version marker: %v", err)
	}

	fmt.Println("🔄 Reseeding demo data...")

	client, err := database.New(storage)
	if err != nil {
		log.Fatalf("❌ Failed to reseed: %v", err)
	}

	// 验证种子数据
	ctx := context.Background()
	for _, table := range []string{"organizations", "profiles", "study_sessions", "invitations"} {
		records, err := client.From(table).Select().Exec(ctx)
		if err != nil {
			log.Fatalf("❌ Failed to read %s: %v", table, err)
		}
		fmt.Printf("✅ %s: %d records\n", table, len(records))
	}

	fmt.Println("✅ Reset complete (version " + database.StorageVersion + ")")
	fmt.Println("   admin@studyhabit.com / admin123")
	fmt.Println("   student@studyhabit.com / student123")
}
