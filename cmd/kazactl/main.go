/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command kazactl is a one-shot CLI for the control/provisioning service
// (C6): it dials the control port over TLS, sends a single command line,
// and prints the reply.
package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kazad/kazad/version"
)

var (
	host       = flag.String("host", "localhost", "control port hostname")
	port       = flag.Int("port", 1757, "control port")
	caCertPath = flag.String("ca", "", "path to the CA certificate PEM, for verifying the server")
	insecure   = flag.Bool("insecure", false, "skip server certificate verification")
	ver        = flag.Bool("version", false, "Print the version information and exit")
)

func main() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: kazactl [flags] <command line>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	cmd := strings.Join(flag.Args(), " ")

	tlsCfg := &tls.Config{ServerName: *host, InsecureSkipVerify: *insecure}
	if *caCertPath != "" {
		pem, err := os.ReadFile(*caCertPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading CA certificate: %v\n", err)
			os.Exit(1)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			fmt.Fprintln(os.Stderr, "CA certificate is not valid PEM")
			os.Exit(1)
		}
		tlsCfg.RootCAs = pool
	}

	conn, err := tls.Dial("tcp", fmt.Sprintf("%s:%d", *host, *port), tlsCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		fmt.Fprintf(os.Stderr, "sending command: %v\n", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			fmt.Print(line)
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "reading reply: %v\n", err)
				os.Exit(1)
			}
			return
		}
		if line == "\n" {
			return
		}
	}
}
