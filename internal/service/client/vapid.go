package client

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/doorwatch/internal/push"
)

// vapidKeys is printed in the shape of the push section of the config.
type vapidKeys struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
}

// GenerateVAPIDKeys writes a fresh key pair as a YAML fragment for the push section.
func GenerateVAPIDKeys(output io.Writer) error {
	privateKey, publicKey, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(&vapidKeys{PublicKey: publicKey, PrivateKey: privateKey})
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}

	if _, err := output.Write(data); err != nil {
		return fmt.Errorf("write keys: %w", err)
	}

	return nil
}
