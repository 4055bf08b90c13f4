//go:build bedrock
// +build bedrock

package main

// Registers the AWS Bedrock provider.
import _ "github.com/itsneelabh/nl2sparql/ai/providers/bedrock"
