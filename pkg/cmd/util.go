// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evaproject/eva/pkg/ckks"
)

// GetFlag reads a required bool flag, exiting the process on the
// programmer error of naming a flag that was never registered.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// GetString reads a required string flag.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// GetStringArray reads a required string-array flag, one entry per
// repetition of the flag (e.g. each "-D key=value"); parseOptions turns
// the entries into a ckks.Config option map.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// parseOptions turns a "-D key=value" flag repetition into the
// string-keyed map ckks.ApplyOptions expects.
func parseOptions(defines []string) map[string]string {
	options := make(map[string]string, len(defines))
	for _, item := range defines {
		split := strings.SplitN(item, "=", 2)
		if len(split) != 2 {
			fmt.Printf("malformed option %q, expected key=value\n", item)
			os.Exit(2)
		}
		options[split[0]] = split[1]
	}
	return options
}

// buildConfig overlays -D-supplied options onto ckks.DefaultConfig.
func buildConfig(defines []string) ckks.Config {
	return ckks.ApplyOptions(ckks.DefaultConfig(), parseOptions(defines))
}
