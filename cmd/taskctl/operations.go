package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/assignment-engine/internal/auth"
	"github.com/spec-kit/assignment-engine/internal/bootstrap"
	"github.com/spec-kit/assignment-engine/internal/config"
)

var nextOwnerExclude string

var nextOwnerCmd = &cobra.Command{
	Use:   "next-owner [rotation-key]",
	Short: "Advance a coordinator rotation and print the selected member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var exclude *string
		if nextOwnerExclude != "" {
			exclude = &nextOwnerExclude
		}
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			member, err := c.Ownership.Next(ctx, args[0], exclude)
			if err != nil {
				return err
			}
			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{"id": member.ID, "name": member.Name})
			}
			fmt.Printf("%s\t%s\n", member.ID, member.Name)
			return nil
		})
	},
}

var tokenAdmin bool

var tokenCmd = &cobra.Command{
	Use:   "token [member-id]",
	Short: "Issue a bearer token for a directory member",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expires, err := tokens.GenerateToken(args[0], tokenAdmin)
		if err != nil {
			return err
		}
		if outputJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{"access_token": token, "expires_at": expires})
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	nextOwnerCmd.Flags().StringVar(&nextOwnerExclude, "exclude", "", "Member id to skip")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Mark the token as admin")
}
