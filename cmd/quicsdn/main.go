// Command quicsdn is the CLI front-end for the QUIC-multiplexed SDN
// tunnel (spec.md §6). It is thin plumbing: argument parsing, the mode
// prompt, TLS credential loading, and wiring the QUIC core (package quic)
// to the two local collaborators in package tunnel. All the interesting
// engineering lives in package quic.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cppla/quicsdn/config"
	"github.com/cppla/quicsdn/internal/metrics"
	"github.com/cppla/quicsdn/internal/obs"
	"github.com/cppla/quicsdn/quic"
	"github.com/cppla/quicsdn/tunnel"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := flag.String("config", "", "Path to config file")
	roleFlag := flag.String("role", "", "client or server (overrides config)")
	flag.Parse()

	if *conf != "" {
		if err := config.Reload(*conf); err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return 1
		}
	}

	args := flag.Args()
	if len(args) != 4 {
		fmt.Println("usage: quicsdn [-config file] <quic_addr> <quic_port> <local_addr> <local_port>")
		return 1
	}
	quicAddr, quicPortStr, localAddr, localPortStr := args[0], args[1], args[2], args[3]
	quicPort, err := strconv.Atoi(quicPortStr)
	if err != nil {
		fmt.Printf("invalid quic_port: %v\n", err)
		return 1
	}
	localPort, err := strconv.Atoi(localPortStr)
	if err != nil {
		fmt.Printf("invalid local_port: %v\n", err)
		return 1
	}

	role := quic.RoleClient
	if *roleFlag == "server" {
		role = quic.RoleServer
	} else if *roleFlag == "" && config.GlobalCfg != nil && config.GlobalCfg.Tunnel != nil && config.GlobalCfg.Tunnel.Role == "server" {
		role = quic.RoleServer
	}

	tag, err := promptMode()
	if err != nil {
		fmt.Printf("mode selection failed: %v\n", err)
		return 1
	}

	logPath := "quicsdn.log"
	logLevel := "info"
	if config.GlobalCfg != nil && config.GlobalCfg.Log.Path != "" {
		logPath = config.GlobalCfg.Log.Path
		logLevel = config.GlobalCfg.Log.Level
	}
	logger := obs.New(obs.Options{Level: logLevel, Path: logPath})
	defer logger.Sync()

	reg := metrics.New(nil)
	go func() {
		srv := &http.Server{Addr: ":9464", Handler: reg.Handler()}
		_ = srv.ListenAndServe()
	}()

	tlsCfg := &tls.Config{NextProtos: []string{"quicsdn"}}
	if keyLogPath := os.Getenv("SSLKEYLOGFILE"); keyLogPath != "" {
		f, err := os.OpenFile(keyLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			logger.Sugar().Warnf("could not open SSLKEYLOGFILE %s: %v", keyLogPath, err)
		} else {
			defer f.Close()
			tlsCfg.KeyLogWriter = f
		}
	}
	if config.GlobalCfg != nil && config.GlobalCfg.Tunnel != nil && config.GlobalCfg.Tunnel.CertFile != "" {
		cert, err := config.LoadTLSCredentials(config.GlobalCfg.Tunnel.CertFile, config.GlobalCfg.Tunnel.KeyFile)
		if err != nil {
			fmt.Printf("failed to load TLS credentials: %v\n", err)
			return 1
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if role == quic.RoleServer {
		tlsCfg.InsecureSkipVerify = false
	} else {
		tlsCfg.InsecureSkipVerify = true // demo default; Tunnel.CAFile is not read, so no CA is pinned
	}

	sock, err := net.ListenPacket("udp", fmt.Sprintf("%s:0", localAddr))
	if err != nil {
		fmt.Printf("failed to open quic socket: %v\n", err)
		return 1
	}
	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", quicAddr, quicPort))
	if err != nil {
		fmt.Printf("failed to resolve quic peer: %v\n", err)
		return 1
	}

	cidLen := quic.ClientCIDLen
	if role == quic.RoleServer {
		cidLen = quic.ServerCIDLen
	}
	localCID := quic.NewConnectionID(cidLen)

	cfg := quic.Config{
		Role:                   role,
		IdleTimeout:            30 * time.Second,
		AckDelay:               25 * time.Millisecond,
		MaxData:                1 << 24,
		InitialMaxStreamData:   1 << 20,
		InitialMaxStreamIDBidi: 1 << 16,
		InitialMaxStreamIDUni:  1 << 16,
	}

	var peerCID []byte
	if role == quic.RoleClient {
		peerCID = quic.NewConnectionID(quic.ServerCIDLen)
	}

	conn := quic.NewConnection(cfg, role, localCID, peerCID, func(cb quic.TlsToQuic) quic.QuicToTls {
		if role == quic.RoleClient {
			return quic.NewClientTLS(tlsCfg, nil, cb)
		}
		return quic.NewServerTLS(tlsCfg, nil, cb)
	})

	dispatcher := quic.NewDispatcher(tag)
	conn.SetDispatcher(dispatcher)

	ofSink, err := tunnel.NewOpenFlowSink(fmt.Sprintf("%s:%d", localAddr, localPort))
	if err != nil {
		fmt.Printf("failed to start openflow sink: %v\n", err)
		return 1
	}
	defer ofSink.Close()
	ovSink, err := tunnel.NewOVSDBSink(fmt.Sprintf("%s:%d", localAddr, localPort+1))
	if err != nil {
		fmt.Printf("failed to start ovsdb sink: %v\n", err)
		return 1
	}
	defer ovSink.Close()

	switch tag {
	case quic.ProtoOFL:
		dispatcher.Bind(quic.ProtoOFL, ofSink)
	case quic.ProtoOVSDB:
		dispatcher.Bind(quic.ProtoOVSDB, ovSink)
	case quic.ProtoMix:
		dispatcher.Bind(quic.ProtoOFL, ofSink)
		dispatcher.Bind(quic.ProtoOVSDB, ovSink)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("received interrupt, shutting down")
		cancel()
	}()

	pump := quic.NewEventPump(conn, sock, peer)
	logger.Sugar().Infow("quicsdn starting", "role", role, "mode", tag.String())
	if err := pump.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Sugar().Errorf("event pump exited: %v", err)
		return 1
	}
	logger.Info("quicsdn shut down")
	return 0
}

// promptMode reproduces spec.md §6's CLI prompt (1=OpenFlow, 2=OVSDB,
// 3=multiplexed), mapping the raw integer immediately to quic.ProtoTag so
// no code downstream branches on the number itself (spec.md §9 "Global
// mutable state" design note — keep the mode as a typed value, not a
// package-global integer).
func promptMode() (quic.ProtoTag, error) {
	fmt.Println("select mode: 1=OpenFlow 2=OVSDB 3=multiplexed")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	switch line[0] {
	case '1':
		return quic.ProtoOFL, nil
	case '2':
		return quic.ProtoOVSDB, nil
	case '3':
		return quic.ProtoMix, nil
	default:
		return 0, fmt.Errorf("invalid mode %q", line)
	}
}
