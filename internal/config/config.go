package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Algorand AlgorandConfig
	Redis    RedisConfig
	Wallet   WalletConfig
	Query    QueryConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type AlgorandConfig struct {
	AlgodURL     string
	AlgodToken   string
	IndexerURL   string
	IndexerToken string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type WalletConfig struct {
	// Mnemonic is the organizer's 25-word phrase. Optional: without it the
	// service starts in read-only mode and every write endpoint reports that
	// no signing account is connected.
	Mnemonic    string
	SignTimeout time.Duration
}

type QueryConfig struct {
	SearchWindow uint64
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	algodURL := os.Getenv("ALGOD_URL")
	if algodURL == "" {
		algodURL = "https://testnet-api.algonode.cloud"
	}

	indexerURL := os.Getenv("INDEXER_URL")
	if indexerURL == "" {
		indexerURL = "https://testnet-idx.algonode.cloud"
	}

	algorandCfg := AlgorandConfig{
		AlgodURL:     algodURL,
		AlgodToken:   os.Getenv("ALGOD_TOKEN"),
		IndexerURL:   indexerURL,
		IndexerToken: os.Getenv("INDEXER_TOKEN"),
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	}

	signTimeout := 90 * time.Second
	if s := os.Getenv("SIGN_TIMEOUT"); s != "" {
		signTimeout, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid SIGN_TIMEOUT: %w", op, err)
		}
	}

	walletCfg := WalletConfig{
		Mnemonic:    os.Getenv("WALLET_MNEMONIC"),
		SignTimeout: signTimeout,
	}

	var searchWindow uint64
	if s := os.Getenv("SEARCH_WINDOW"); s != "" {
		searchWindow, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid SEARCH_WINDOW: %w", op, err)
		}
	}

	return &Config{
		Server:   serverCfg,
		Algorand: algorandCfg,
		Redis:    redisCfg,
		Wallet:   walletCfg,
		Query:    QueryConfig{SearchWindow: searchWindow},
	}, nil
}
