package options

import (
	"github.com/spf13/cobra"
)

// IdentityOptions override the configured identity for one invocation.
type IdentityOptions struct {
	UserID string
	Email  string
	// ConfigPath is an extra directory searched for .taskly.yaml.
	ConfigPath string
}

func AddIdentityArgs(cmd *cobra.Command, o *IdentityOptions) {
	cmd.PersistentFlags().StringVar(&o.UserID, "user-id", "",
		"Act as this user id. Overrides identity.user_id.")
	cmd.PersistentFlags().StringVar(&o.Email, "email", "",
		"Act as this email. Overrides identity.email.")
	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", "",
		"Directory holding .taskly.yaml.")
}
