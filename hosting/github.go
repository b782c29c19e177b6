package hosting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"nullbytes.dev/wipecert/certerr"
)

const DefaultGitHubAPI = "https://api.github.com"

// GitHubUploader commits each payload as a new file through the repository
// contents API and references it by its GitHub Pages URL.
type GitHubUploader struct {
	Owner  string
	Repo   string
	Branch string
	// Dir is an optional directory inside the repository.
	Dir   string
	Token string
	// PagesBase defaults to https://<owner>.github.io/<repo>.
	PagesBase string
	// APIBase defaults to DefaultGitHubAPI.
	APIBase string
	// ProbeAddr defaults to the API host on port 443.
	ProbeAddr string

	Client *http.Client
	Now    func() time.Time
	NewID  func() string
}

var _ Uploader = (*GitHubUploader)(nil)

func (u *GitHubUploader) apiBase() string {
	if u.APIBase != "" {
		return strings.TrimSuffix(u.APIBase, "/")
	}
	return DefaultGitHubAPI
}

func (u *GitHubUploader) pagesBase() string {
	if u.PagesBase != "" {
		return strings.TrimSuffix(u.PagesBase, "/")
	}
	return fmt.Sprintf("https://%s.github.io/%s", u.Owner, u.Repo)
}

func (u *GitHubUploader) probeAddr() (string, error) {
	if u.ProbeAddr != "" {
		return u.ProbeAddr, nil
	}
	p, err := url.Parse(u.apiBase())
	if err != nil {
		return "", err
	}
	if p.Port() != "" {
		return p.Host, nil
	}
	port := "443"
	if p.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(p.Hostname(), port), nil
}

// FileName returns cert_<UTC yyyymmdd_hhmmss>_<8 hex>.json.
func (u *GitHubUploader) FileName() string {
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	var id string
	if u.NewID != nil {
		id = u.NewID()
	} else {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return fmt.Sprintf("cert_%s_%s.json", now().UTC().Format("20060102_150405"), id)
}

func (u *GitHubUploader) Probe(ctx context.Context) error {
	if u.Token == "" {
		return certerr.New(certerr.KindUploadUnavailable, ruleDisabled, "no GitHub token configured")
	}
	addr, err := u.probeAddr()
	if err != nil {
		return certerr.Wrap(certerr.KindUploadUnavailable, ruleProbe, "bad GitHub API base", err)
	}
	return DialProbe(ctx, addr)
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
}

func (u *GitHubUploader) Upload(ctx context.Context, data []byte) Result {
	if u.Token == "" {
		return unavailable(ruleDisabled, "no GitHub token configured", nil)
	}
	if u.Owner == "" || u.Repo == "" {
		return unavailable(ruleUpload, "GitHub owner and repo are required", nil)
	}

	name := u.FileName()
	filePath := name
	if d := strings.Trim(u.Dir, "/"); d != "" {
		filePath = path.Join(d, name)
	}
	body, err := json.Marshal(contentsRequest{
		Message: "Add " + filePath,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  u.Branch,
	})
	if err != nil {
		return unavailable(ruleUpload, "encode GitHub request", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		u.apiBase(), url.PathEscape(u.Owner), url.PathEscape(u.Repo), filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return unavailable(ruleUpload, "build GitHub request", err)
	}
	req.Header.Set("Authorization", "token "+u.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return unavailable(ruleTimeout, "GitHub upload timed out", err)
		}
		return unavailable(ruleUpload, "GitHub upload failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return unavailable(ruleStatus, fmt.Sprintf("GitHub upload returned %s", resp.Status), nil)
	}
	return Hosted(u.pagesBase() + "/" + filePath)
}
