package main

import (
	"fmt"

	"github.com/premier-io/drops-go/cmd"
	"github.com/spf13/viper"
)

const (
	ENV_CONFIG_FILE_PATH = "DROPS_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Drop server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Drop server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	dsc := PrepareServerConfig()

	fmt.Println("Starting drop server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartDropServerAndWait(dsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareServerConfig reads configuration variables and returns a ServerConfig.
func PrepareServerConfig() *cmd.ServerConfig {
	viper.SetDefault("DB_ENGINE", cmd.DB_ENGINE_SQLITE)
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	return &cmd.ServerConfig{
		// state side
		DbEngine:   viper.GetString("DB_ENGINE"),
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		StoreOwner: viper.GetString("STORE_OWNER"),
		// eth side
		EthRpcUrl:    viper.GetString("ETH_RPC_URL"),
		EthPayerPriv: viper.GetString("ETH_PAYER_PRIV"),
		// verifier side
		VerifierCacheSize: viper.GetInt("VERIFIER_CACHE_SIZE"),
		CallTimeout:       viper.GetDuration("CALL_TIMEOUT"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}
}
