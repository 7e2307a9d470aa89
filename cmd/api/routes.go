package main

import (
	"github.com/spf13/cobra"

	"github.com/deppfellow/layered-api/internal/handler"
	"github.com/deppfellow/layered-api/internal/lib/utils"
	"github.com/deppfellow/layered-api/internal/router"
	"github.com/deppfellow/layered-api/internal/validation"
)

type routeInfo struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Endpoint string `json:"endpoint"`
	Schema   string `json:"schema"`
	Status   int    `json:"status"`
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the API routes as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := validation.NewCatalog()
			if err != nil {
				return err
			}
			// operations are never called, so no service is needed
			registry, err := router.BuildRegistry(catalog, handler.NewUserHandler(nil))
			if err != nil {
				return err
			}

			routes := registry.Routes()
			out := make([]routeInfo, 0, len(routes))
			for _, r := range routes {
				status := r.Endpoint.SuccessStatus
				out = append(out, routeInfo{
					Method:   r.Method,
					Path:     r.Path,
					Endpoint: r.Endpoint.Name,
					Schema:   r.Endpoint.Schema.Name,
					Status:   status,
				})
			}
			return utils.PrintJSON(cmd.OutOrStdout(), out)
		},
	}
}
