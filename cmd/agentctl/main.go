// Command agentctl is the interactive client counterpart to agentd: it
// dials an endpoint with RemoteAgent and drives a single process or
// stream call, or reads a running node's registry snapshot.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/remote"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "call, stream, or inspect a dispatch fabric node",
	}

	var timeout time.Duration
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-call timeout")

	call := &cobra.Command{
		Use:   "call <endpoint> <content>",
		Short: "send one request and print the response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(args[0], args[1], timeout)
		},
	}

	stream := &cobra.Command{
		Use:   "stream <endpoint> <content>",
		Short: "send one streaming request and print each chunk as it arrives",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(args[0], args[1], timeout)
		},
	}

	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "inspect a node's in-process registry",
	}
	var statusEndpoint string
	registryList := &cobra.Command{
		Use:   "list",
		Short: "list every registration a node currently knows about",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryList(statusEndpoint)
		},
	}
	registryList.Flags().StringVar(&statusEndpoint, "status-endpoint", "127.0.0.1:9191", "the node's status-endpoint address")
	registryCmd.AddCommand(registryList)

	root.AddCommand(call, stream, registryCmd)
	return root
}

func runCall(endpoint, content string, timeout time.Duration) error {
	ra, err := remote.Dial("agentctl", endpoint, timeout)
	if err != nil {
		return fmt.Errorf("agentctl: dial %s: %w", endpoint, err)
	}
	defer ra.Close()

	resp, err := ra.Process(context.Background(), agent.NewMessage("user", content))
	if err != nil {
		return fmt.Errorf("agentctl: call: %w", err)
	}
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func runStream(endpoint, content string, timeout time.Duration) error {
	ra, err := remote.Dial("agentctl", endpoint, timeout)
	if err != nil {
		return fmt.Errorf("agentctl: dial %s: %w", endpoint, err)
	}
	defer ra.Close()

	chunks, errCh := ra.Stream(context.Background(), agent.NewMessage("user", content))
	for chunk := range chunks {
		b, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("agentctl: stream: %w", err)
	}
	return nil
}

func runRegistryList(statusEndpoint string) error {
	resp, err := http.Get(fmt.Sprintf("http://%s/registry", statusEndpoint))
	if err != nil {
		return fmt.Errorf("agentctl: fetch registry from %s: %w", statusEndpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
