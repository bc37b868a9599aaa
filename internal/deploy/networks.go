package deploy

import (
	"fmt"
	"io"
	"sort"

	"github.com/compose-network/crossdeploy/configs"
	"github.com/compose-network/crossdeploy/internal/deploy/network"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type networkView struct {
	Name     string `yaml:"name"`
	ChainID  uint64 `yaml:"chain-id"`
	Gateway  string `yaml:"gateway"`
	Explorer string `yaml:"explorer"`
	Active   bool   `yaml:"active,omitempty"`
}

var NetworksCMD = &cobra.Command{
	Use:   "networks",
	Short: "Print the configured networks and the gateway each one resolves to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeNetworks(cmd.OutOrStdout(), configs.Values.Deploy)
	},
}

func writeNetworks(w io.Writer, cfg configs.Deploy) error {
	resolver, err := network.NewResolverFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build gateway table: %w", err)
	}

	views := make([]networkView, 0, len(cfg.Networks))
	for name, profile := range cfg.Networks {
		gateway, err := resolver.Resolve(profile.ChainID)
		if err != nil {
			return err
		}
		views = append(views, networkView{
			Name:     string(name),
			ChainID:  profile.ChainID,
			Gateway:  gateway.Hex(),
			Explorer: profile.Explorer.APIURL,
			Active:   name == cfg.Network,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(map[string][]networkView{"networks": views}); err != nil {
		return fmt.Errorf("failed to encode networks: %w", err)
	}

	return encoder.Close()
}
