package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockline/stockline/internal/api/validation"
	"github.com/stockline/stockline/internal/app"
	"github.com/stockline/stockline/internal/tenant"
)

type provisionOptions struct {
	title      string
	ownerEmail string
	ownerName  string
	shopTitle  string
}

func (o provisionOptions) request() (tenant.ProvisionRequest, error) {
	req := tenant.ProvisionRequest{
		TenantTitle: strings.TrimSpace(o.title),
		OwnerEmail:  strings.TrimSpace(o.ownerEmail),
		OwnerName:   strings.TrimSpace(o.ownerName),
		ShopTitle:   strings.TrimSpace(o.shopTitle),
	}
	errs := validation.ValidateProvisionRequest(validation.ProvisionRequest{
		TenantTitle: req.TenantTitle,
		OwnerEmail:  req.OwnerEmail,
		OwnerName:   req.OwnerName,
		ShopTitle:   req.ShopTitle,
	})
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Field + ": " + e.Message
		}
		return req, fmt.Errorf("invalid tenant: %s", strings.Join(msgs, "; "))
	}
	return req, nil
}

func newProvisionCmd() *cobra.Command {
	var opts provisionOptions

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a tenant with its owner, a shop and an owner API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				out, err := a.Provisioner.Provision(cmd.Context(), req, nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"tenantId": out.Tenant.ID,
					"shopId":   out.Shop.ID,
					"ownerId":  out.Owner.ID,
					"apiKey":   out.APIKey,
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Tenant title (required)")
	cmd.Flags().StringVar(&opts.ownerEmail, "owner-email", "", "Owner email (required)")
	cmd.Flags().StringVar(&opts.ownerName, "owner-name", "", "Owner display name")
	cmd.Flags().StringVar(&opts.shopTitle, "shop", "", "Title of the first shop (default \""+tenant.DefaultShopTitle+"\")")

	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("owner-email")

	return cmd
}

func newBootstrapCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first system admin when no users exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if email == "" {
					email = a.Config.BootstrapAdminEmail
				}
				key, err := a.Provisioner.BootstrapSystemAdmin(cmd.Context(), email)
				if err != nil {
					return err
				}
				if key == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "users already exist; nothing to do")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"email": email, "apiKey": key})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email (default BOOTSTRAP_ADMIN_EMAIL)")
	return cmd
}
