// CLI admin de trustcore: habla con la superficie /v1/admin del servicio.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("TRUSTCORE_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("TRUSTCORE_ADMIN_KEY", "")
		out     = envOr("TRUSTCORE_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "trustcore",
		Short: "CLI admin para trustcore (solo /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env TRUSTCORE_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env TRUSTCORE_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env TRUSTCORE_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: timeout}}

	// ping: GET /healthz (sin key, pero la key ya está validada arriba)
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Verificar que el servicio responde",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/healthz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	// revocations
	revCmd := &cobra.Command{Use: "revocations", Short: "Operaciones sobre el registro de revocación"}

	var revToken, revJTI, revUser, revReason string
	var revAll bool
	var revTTL int
	revAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Revocar un token (por token completo, por jti, o todo lo de un usuario)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revReason == "" {
				return fmt.Errorf("--reason es requerido")
			}
			if !revAll && revToken == "" && revJTI == "" {
				return fmt.Errorf("se requiere --token, --jti o --all")
			}
			payload := map[string]any{"reason": revReason}
			switch {
			case revAll:
				if revUser == "" {
					return fmt.Errorf("--all requiere --user")
				}
				payload["all"] = true
				payload["user_id"] = revUser
			case revToken != "":
				payload["token"] = revToken
			default:
				if revUser == "" {
					return fmt.Errorf("--jti requiere --user")
				}
				payload["jti"] = revJTI
				payload["user_id"] = revUser
				if revTTL > 0 {
					payload["ttl_seconds"] = revTTL
				}
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/v1/admin/revocations", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revocations add fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	revAddCmd.Flags().StringVar(&revToken, "token", "", "Access token completo a revocar")
	revAddCmd.Flags().StringVar(&revJTI, "jti", "", "JTI a revocar (requiere --user)")
	revAddCmd.Flags().StringVar(&revUser, "user", "", "User ID dueño del token")
	revAddCmd.Flags().BoolVar(&revAll, "all", false, "Revocar todo lo emitido hasta ahora para --user")
	revAddCmd.Flags().StringVar(&revReason, "reason", "", "Motivo (logout, admin_action, security_incident, ...)")
	revAddCmd.Flags().IntVar(&revTTL, "ttl-seconds", 0, "TTL del registro cuando se revoca por jti (opcional)")

	var listUser string
	revListCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar revocaciones vigentes de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listUser == "" {
				return fmt.Errorf("--user es requerido")
			}
			status, body, err := cl.do("GET", "/v1/admin/users/"+listUser+"/revocations", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revocations list fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	revListCmd.Flags().StringVar(&listUser, "user", "", "User ID")

	revCmd.AddCommand(revAddCmd, revListCmd)

	// secrets
	secCmd := &cobra.Command{Use: "secrets", Short: "Ciclo de vida de secretos gestionados"}

	var rotName string
	secRotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotar un secreto (genera valor nuevo, mantiene ventana de gracia)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rotName == "" {
				return fmt.Errorf("--name es requerido")
			}
			status, body, err := cl.do("POST", "/v1/admin/secrets/"+rotName+"/rotate", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("secrets rotate fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	secRotateCmd.Flags().StringVar(&rotName, "name", "", "Nombre del secreto (ej. jwt-signing-key)")

	var setName, setValue string
	secSetCmd := &cobra.Command{
		Use:   "set",
		Short: "Activar un valor provisto a mano (pasa el chequeo de fortaleza)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if setName == "" || setValue == "" {
				return fmt.Errorf("--name y --value son requeridos")
			}
			b, _ := json.Marshal(map[string]string{"value": setValue})
			status, body, err := cl.do("PUT", "/v1/admin/secrets/"+setName, b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("secrets set fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	secSetCmd.Flags().StringVar(&setName, "name", "", "Nombre del secreto")
	secSetCmd.Flags().StringVar(&setValue, "value", "", "Valor nuevo (solo viaja hacia el servicio)")

	var histName string
	secHistoryCmd := &cobra.Command{
		Use:   "history",
		Short: "Historia de versiones (valores enmascarados)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if histName == "" {
				return fmt.Errorf("--name es requerido")
			}
			status, body, err := cl.do("GET", "/v1/admin/secrets/"+histName+"/history", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("secrets history fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	secHistoryCmd.Flags().StringVar(&histName, "name", "", "Nombre del secreto")

	secCmd.AddCommand(secRotateCmd, secSetCmd, secHistoryCmd)

	root.AddCommand(pingCmd, revCmd, secCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
