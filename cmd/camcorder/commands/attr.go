package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/api"
	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverURL string

var attrCmd = &cobra.Command{
	Use:   "attr",
	Short: "Read and write device attributes",
	Long:  `Read and write the attributes of a running camcorder server.`,
}

var attrListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every attribute with its current value",
	Example: `  # List attributes of the local server
  camcorder attr list

  # List attributes of a remote server
  camcorder attr list --server http://camera.local:8080`,
	Args: cobra.NoArgs,
	RunE: runAttrList,
}

var attrGetCmd = &cobra.Command{
	Use:   "get NAME...",
	Short: "Get attribute values",
	Example: `  # Get one attribute with its description
  camcorder attr get camera-width

  # Get several attributes
  camcorder attr get camera-width camera-height`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttrGet,
}

var attrSetCmd = &cobra.Command{
	Use:   "set NAME=VALUE...",
	Short: "Set attribute values",
	Long: `Set attributes in order. Writes before a failing pair stay applied; the
failing attribute is reported.`,
	Example: `  # Change the preview resolution
  camcorder attr set camera-width=1280 camera-height=720

  # Set the recording file
  camcorder attr set target-filename=/tmp/clip.mp4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttrSet,
}

func init() {
	rootCmd.AddCommand(attrCmd)
	attrCmd.AddCommand(attrListCmd)
	attrCmd.AddCommand(attrGetCmd)
	attrCmd.AddCommand(attrSetCmd)

	attrCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default is http://localhost:PORT)")
}

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient() *apiClient {
	base := serverURL
	if base == "" {
		port := viper.GetInt("server_port")
		if port <= 0 {
			port = 8080
		}
		base = fmt.Sprintf("http://localhost:%d", port)
	}
	return &apiClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes a JSON reply into out when non-nil
func (c *apiClient) do(method, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		if e.Attribute != "" {
			return fmt.Errorf("%s (attribute %s)", e.Error, e.Attribute)
		}
		return fmt.Errorf("%s", e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runAttrList(cmd *cobra.Command, args []string) error {
	var values []api.AttributeValue
	if err := newAPIClient().do(http.MethodGet, "/api/attributes", nil, &values); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE")
	for _, v := range values {
		fmt.Fprintf(w, "%s\t%v\n", v.Name, v.Value)
	}
	return w.Flush()
}

func runAttrGet(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	if len(args) == 1 {
		var v api.AttributeValue
		if err := c.do(http.MethodGet, "/api/attributes/"+url.PathEscape(args[0]), nil, &v); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	q := url.Values{"name": args}
	var values []api.AttributeValue
	if err := c.do(http.MethodGet, "/api/attributes?"+q.Encode(), nil, &values); err != nil {
		return err
	}
	for _, v := range values {
		fmt.Printf("%s = %v\n", v.Name, v.Value)
	}
	return nil
}

func runAttrSet(cmd *cobra.Command, args []string) error {
	pairs, err := parsePairs(args)
	if err != nil {
		return err
	}
	if err := newAPIClient().do(http.MethodPut, "/api/attributes", pairs, nil); err != nil {
		return err
	}
	for _, p := range pairs {
		fmt.Printf("✅ %s = %v\n", p.Name, p.Value)
	}
	return nil
}

// parsePairs turns NAME=VALUE arguments into pairs; numeric values are sent
// as numbers
func parsePairs(args []string) ([]attr.Pair, error) {
	pairs := make([]attr.Pair, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pair %q (use NAME=VALUE)", arg)
		}
		pairs = append(pairs, attr.P(name, parseValue(value)))
	}
	return pairs, nil
}

func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
