package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"embed"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/codegate"
	"github.com/TecharoHQ/codegate/data"
	"github.com/TecharoHQ/codegate/internal"
	libcodegate "github.com/TecharoHQ/codegate/lib"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/challenge/sms"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/yaml"
)

var (
	basePrefix               = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /myapp")
	bind                     = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	cookieDomain             = flag.String("cookie-domain", "", "if set, the top-level domain that the session cookie will be valid for")
	cookieDynamicDomain      = flag.Bool("cookie-dynamic-domain", false, "if set, automatically set the cookie Domain value based on the request domain")
	cookieExpiration         = flag.Duration("cookie-expiration-time", 24*time.Hour, "the amount of time the session cookie is valid for")
	cookiePrefix             = flag.String("cookie-prefix", "techaro.lol-codegate", "prefix for browser cookies created by codegate")
	cookiePartitioned        = flag.Bool("cookie-partitioned", false, "if true, sets the partitioned flag on codegate cookies, enabling CHIPS support")
	cookieSecure             = flag.Bool("cookie-secure", true, "if true, sets the secure flag on codegate cookies")
	dumpConfig               = flag.Bool("dump-config", false, "print the effective policy with every default filled in and exit")
	hs512Secret              = flag.String("hs512-secret", "", "secret used to sign session cookies, uses ed25519 if not set")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign session cookies, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	extractResources         = flag.String("extract-resources", "", "if set, extract the built-in policies to the specified folder")
	healthcheck              = flag.Bool("healthcheck", false, "run a health check against codegate")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	policyFname              = flag.String("policy-fname", "", "full path to the codegate policy document (defaults to a sensible built-in policy)")
	sessionIdleTimeout       = flag.Duration("session-idle-timeout", codegate.SessionDefaultExpirationTime, "how long a session without requests is kept")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	smsWebhookURL            = flag.String("sms-webhook-url", "", "if set, sms codes are POSTed as JSON to this URL instead of only being logged")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	stripBasePrefix          = flag.Bool("strip-base-prefix", false, "if true, strips the base prefix from requests forwarded to the target server")
	target                   = flag.String("target", "http://localhost:3923", "target to reverse proxy to")
	targetSNI                = flag.String("target-sni", "", "if set, the value of the TLS handshake hostname when forwarding requests to the target")
	targetHost               = flag.String("target-host", "", "if set, the value of the Host header when forwarding requests to the target")
	targetInsecureSkipVerify = flag.Bool("target-insecure-skip-verify", false, "if true, skips TLS validation for the backend")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running codegate on bare metal")
	versionFlag              = flag.Bool("version", false, "print codegate version")
)

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("supplied key is not hex-encoded: %w", err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("supplied key is not %d bytes long, got %d bytes", ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + codegate.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func makeReverseProxy(target string, targetSNI string, targetHost string, insecureSkipVerify bool) (http.Handler, error) {
	targetUri, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target URL: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	// https://github.com/oauth2-proxy/oauth2-proxy/blob/4e2100a2879ef06aea1411790327019c1a09217c/pkg/upstream/http.go#L124
	if targetUri.Scheme == "unix" {
		addr := targetUri.Path
		targetUri.Path = ""
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			dialer := net.Dialer{}
			return dialer.DialContext(ctx, "unix", addr)
		}
		transport.RegisterProtocol("unix", libcodegate.UnixRoundTripper{Transport: transport})
	}

	if insecureSkipVerify || targetSNI != "" {
		transport.TLSClientConfig = &tls.Config{}
		if insecureSkipVerify {
			slog.Warn("TARGET_INSECURE_SKIP_VERIFY is set to true, TLS certificate validation will not be performed", "target", target)
			transport.TLSClientConfig.InsecureSkipVerify = true
		}
		if targetSNI != "" {
			transport.TLSClientConfig.ServerName = targetSNI
		}
	}

	rp := httputil.NewSingleHostReverseProxy(targetUri)
	rp.Transport = transport

	if targetHost != "" {
		originalDirector := rp.Director
		rp.Director = func(req *http.Request) {
			originalDirector(req)
			req.Host = targetHost
		}
	}

	return rp, nil
}

func signingKey() (ed25519.PrivateKey, error) {
	switch {
	case *hs512Secret != "" && (*ed25519PrivateKeyHex != "" || *ed25519PrivateKeyHexFile != ""):
		return nil, errors.New("do not specify both HS512 and ED25519 secrets")
	case *ed25519PrivateKeyHex != "" && *ed25519PrivateKeyHexFile != "":
		return nil, errors.New("do not specify both ED25519_PRIVATE_KEY_HEX and ED25519_PRIVATE_KEY_HEX_FILE")
	case *ed25519PrivateKeyHex != "":
		return keyFromHex(*ed25519PrivateKeyHex)
	case *ed25519PrivateKeyHexFile != "":
		hexFile, err := os.ReadFile(*ed25519PrivateKeyHexFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ED25519_PRIVATE_KEY_HEX_FILE %s: %w", *ed25519PrivateKeyHexFile, err)
		}
		return keyFromHex(string(bytes.TrimSpace(hexFile)))
	case *hs512Secret == "":
		slog.Warn("generating random key, sessions will not be shared between codegate instances behind the same load balancer")
	}

	return nil, nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("codegate", codegate.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *extractResources != "" {
		if err := extractEmbedFS(data.Policies, ".", *extractResources); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted built-in policies to %s\n", *extractResources)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := libcodegate.LoadPoliciesOrDefault(ctx, *policyFname)
	if err != nil {
		log.Fatalf("can't parse policy file: %v", err)
	}

	if *dumpConfig {
		out, err := yaml.Marshal(policy.File())
		if err != nil {
			log.Fatalf("can't marshal policy: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	var rp http.Handler
	if strings.TrimSpace(*target) != "" {
		rp, err = makeReverseProxy(*target, *targetSNI, *targetHost, *targetInsecureSkipVerify)
		if err != nil {
			log.Fatalf("can't make reverse proxy: %v", err)
		}
	}

	if *cookieDomain != "" && *cookieDynamicDomain {
		log.Fatalf("you can't set COOKIE_DOMAIN and COOKIE_DYNAMIC_DOMAIN at the same time")
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}
	if *stripBasePrefix && *basePrefix == "" {
		log.Fatalf("[misconfiguration] strip-base-prefix is set to true, but base-prefix is not set, " +
			"this may result in unexpected behavior")
	}

	ed25519Priv, err := signingKey()
	if err != nil {
		log.Fatal(err)
	}

	codegate.CookieName = *cookiePrefix + "-session"
	codegate.WithDomainCookieName = *cookiePrefix + "-session-for-"

	overrides := map[challenge.Type]challenge.BuildInput{}
	if *smsWebhookURL != "" {
		sender, err := sms.NewWebhookSender(*smsWebhookURL, nil)
		if err != nil {
			log.Fatalf("can't use sms webhook: %v", err)
		}
		overrides[challenge.TypeSMS] = challenge.BuildInput{Deliverer: &sms.Deliverer{Sender: sender}}
	}

	s, err := libcodegate.New(ctx, libcodegate.Options{
		BasePrefix:          *basePrefix,
		StripBasePrefix:     *stripBasePrefix,
		Next:                rp,
		Policy:              policy,
		ED25519PrivateKey:   ed25519Priv,
		HS512Secret:         []byte(*hs512Secret),
		CookieDomain:        *cookieDomain,
		CookieDynamicDomain: *cookieDynamicDomain,
		CookieExpiration:    *cookieExpiration,
		CookiePartitioned:   *cookiePartitioned,
		CookieSecure:        *cookieSecure,
		SessionIdleTimeout:  *sessionIdleTimeout,
		Overrides:           overrides,
	})
	if err != nil {
		log.Fatalf("can't construct codegate server: %v", err)
	}

	wg := new(sync.WaitGroup)

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.RemoteXRealIP(*useRemoteAddress, h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"target", *target,
		"version", codegate.Version,
		"store", policy.Store.Backend,
		"routes", len(policy.Routes),
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
		"cookie-expiration-time", *cookieExpiration,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(codegate.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	if *healthcheck {
		log.Println("running healthcheck")
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func extractEmbedFS(fsys embed.FS, root string, destDir string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, path)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
