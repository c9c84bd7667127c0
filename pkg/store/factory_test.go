package store

import (
	"context"
	"testing"
	"time"
)

func TestParseStoreType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected StoreType
	}{
		{name: "parse memory lowercase", input: "memory", expected: StoreTypeMemory},
		{name: "parse memory uppercase", input: "MEMORY", expected: StoreTypeMemory},
		{name: "parse redis lowercase", input: "redis", expected: StoreTypeRedis},
		{name: "parse redis mixed case", input: "ReDiS", expected: StoreTypeRedis},
		{name: "parse redis with spaces", input: "  redis ", expected: StoreTypeRedis},
		{name: "typo is kept and invalid", input: "Reids", expected: StoreType("reids")},
		{name: "empty input returns memory", input: "", expected: StoreTypeMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStoreType(tt.input)
			if got != tt.expected {
				t.Errorf("ParseStoreType(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if want := tt.expected == StoreTypeMemory || tt.expected == StoreTypeRedis; got.IsValid() != want {
				t.Errorf("ParseStoreType(%q).IsValid() = %v, want %v", tt.input, got.IsValid(), want)
			}
		})
	}
}

func TestStoreType_IsValid(t *testing.T) {
	tests := []struct {
		storeType StoreType
		want      bool
	}{
		{StoreTypeMemory, true},
		{StoreTypeRedis, true},
		{StoreType("bolt"), false},
		{StoreType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.storeType.String(), func(t *testing.T) {
			if got := tt.storeType.IsValid(); got != tt.want {
				t.Errorf("StoreType(%q).IsValid() = %v, want %v", tt.storeType, got, tt.want)
			}
		})
	}
}

func TestFactory_Create_Memory(t *testing.T) {
	factory := NewFactory(MemoryConfig(time.Minute))

	store, err := factory.Create()
	if err != nil {
		t.Fatalf("Factory.Create() error = %v", err)
	}
	defer store.Close()

	mem, ok := store.(*MemoryStore)
	if !ok {
		t.Fatalf("Factory.Create() returned %T, want *MemoryStore", store)
	}
	if mem.ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", mem.ttl)
	}
}

func TestFactory_Create_Redis(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewFactory(RedisConfig(RedisOptions{Addr: addr}, time.Hour)).Create()
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*RedisStore); !ok {
		t.Fatalf("Factory.Create() returned %T, want *RedisStore", store)
	}

	ctx := context.Background()
	id := mustCreate(t, store, "tok", nil)
	if _, err := store.Resolve(ctx, id); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
}

func TestFactory_Create_InvalidType(t *testing.T) {
	store, err := NewFactory(Config{Type: StoreType("invalid")}).Create()
	if err == nil {
		t.Error("Factory.Create() with invalid type should return error")
	}
	if store != nil {
		t.Error("Factory.Create() with invalid type should return nil store")
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "create memory store", config: Config{Type: StoreTypeMemory}},
		{name: "invalid store type", config: Config{Type: StoreType("invalid")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && store == nil {
				t.Error("NewStore() returned nil store")
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	mem := MemoryConfig(time.Hour)
	if mem.Type != StoreTypeMemory || mem.TTL != time.Hour {
		t.Errorf("MemoryConfig() = %+v", mem)
	}

	opts := RedisOptions{Addr: "redis:6379", Password: "pw", DB: 2}
	rc := RedisConfig(opts, 2*time.Hour)
	if rc.Type != StoreTypeRedis || rc.Redis != opts || rc.TTL != 2*time.Hour {
		t.Errorf("RedisConfig() = %+v", rc)
	}
}
