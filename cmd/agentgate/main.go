// Command agentgate runs the agent invocation gateway.
//
// Configuration is read from an optional YAML or JSON file (--config) and
// from AGENTGATE_* environment variables, which take precedence:
//
//	AGENTGATE_AUTH_REGION=eu-west-1 \
//	AGENTGATE_AUTH_USER_POOL_ID=eu-west-1_AbCdEf123 \
//	AGENTGATE_RUNTIME_ENDPOINT=https://bedrock-agentcore.eu-west-1.amazonaws.com \
//	AGENTGATE_RUNTIME_ARN=arn:aws:bedrock-agentcore:eu-west-1:123456789012:runtime/agent-abc \
//	agentgate serve
//
// Run "agentgate check-config --env" to list every recognized variable.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentgate:", err)
		os.Exit(1)
	}
}
