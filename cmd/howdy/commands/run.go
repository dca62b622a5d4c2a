package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/howdynet/howdy/src/howdy"
)

//NewRunCmd returns the command that starts a howdy node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runHowdy,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runHowdy(cmd *cobra.Command, args []string) error {
	engine := howdy.NewHowdy(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Optional file to copy the log output to")
	cmd.Flags().StringP("name", "n", _config.Moniker, "Optional display name embedded in handshake messages")

	// Network
	cmd.Flags().Uint16P("port", "p", _config.Port, "TCP listen port (0 = ephemeral)")
	cmd.Flags().StringP("connect", "c", _config.ConnectAddr, "Multiaddress of a peer to dial at startup; must contain /p2p/<id>")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Join the well-known public discovery network")
	cmd.Flags().Bool("relay", _config.Relay, "Act as a relay for NAT-restricted peers")

	// Discovery
	cmd.Flags().Bool("dht", _config.DHT, "Enable the Kademlia DHT in server mode")
	cmd.Flags().Bool("mdns", _config.MDNS, "Enable local network discovery")
	cmd.Flags().Duration("handshake-interval", _config.HandshakeInterval, "Time between handshake broadcasts")
	cmd.Flags().Duration("discovery-interval", _config.DiscoveryInterval, "Time between network re-bootstraps")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":           _config.DataDir,
		"LogLevel":          _config.LogLevel,
		"Moniker":           _config.Moniker,
		"Port":              _config.Port,
		"ConnectAddr":       _config.ConnectAddr,
		"Bootstrap":         _config.Bootstrap,
		"Relay":             _config.Relay,
		"DHT":               _config.DHT,
		"MDNS":              _config.MDNS,
		"HandshakeInterval": _config.HandshakeInterval,
		"DiscoveryInterval": _config.DiscoveryInterval,
		"ServiceAddr":       _config.ServiceAddr,
		"NoService":         _config.NoService,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all
	// other persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/howdy.toml (.json, .yaml also work)
	viper.SetConfigName("howdy")        // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
