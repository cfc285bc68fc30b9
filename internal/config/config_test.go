package config_test

import (
	"testing"
	"time"

	"orders/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost user=orders dbname=orders")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "orders", cfg.OrdersQueue)
	assert.Equal(t, "products", cfg.ProductsQueue)
	assert.Equal(t, "payments", cfg.PaymentsQueue)
	assert.Equal(t, "payment.succeeded", cfg.PaymentEventsQueue)
	assert.Equal(t, 5*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 15*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, "usd", cfg.PaymentCurrency)
	assert.Equal(t, config.CatalogAMQP, cfg.CatalogDriver)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("RPC_TIMEOUT", "750ms")
	t.Setenv("CATALOG_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, cfg.DatabaseDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.RPCTimeout)
	assert.Equal(t, config.DefaultHandlerTimeout(750*time.Millisecond), cfg.HandlerTimeout)
	assert.Equal(t, config.CatalogMemory, cfg.CatalogDriver)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"postgres without dsn", map[string]string{"DATABASE_DRIVER": "postgres"}, "DATABASE_DSN"},
		{"sqlite without dsn", map[string]string{"DATABASE_DRIVER": "sqlite"}, "DATABASE_DSN"},
		{"unknown catalog", map[string]string{"DATABASE_DRIVER": "memory", "CATALOG_DRIVER": "grpc"}, "CATALOG_DRIVER"},
		{"zero timeout", map[string]string{"DATABASE_DRIVER": "memory", "RPC_TIMEOUT": "0s"}, "RPC_TIMEOUT"},
		{"negative timeout", map[string]string{"DATABASE_DRIVER": "memory", "RPC_TIMEOUT": "-1s"}, "RPC_TIMEOUT"},
		{"handler shorter than two calls", map[string]string{"DATABASE_DRIVER": "memory", "RPC_TIMEOUT": "5s", "HANDLER_TIMEOUT": "8s"}, "HANDLER_TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_EmptyCurrency(t *testing.T) {
	v := viper.New()
	t.Setenv("DATABASE_DRIVER", "memory")
	config.SetDefaults(v)
	v.Set("PAYMENT_CURRENCY", "")

	_, err := config.Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_CURRENCY")
}

func TestLoad_ExplicitHandlerTimeout(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("RPC_TIMEOUT", "2s")
	t.Setenv("HANDLER_TIMEOUT", "20s")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.HandlerTimeout)
}
