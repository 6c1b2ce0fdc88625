/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config provides configuration structures and validation for the logger package.
//
// # Overview
//
// The config package defines the configuration model for the logger package: a single
// stdout/stderr output with independent formatting options, plus an inheritance-based
// defaulting mechanism and struct validation.
//
// Key features:
//   - Stdout/stderr output with per-flag formatting control
//   - Configuration inheritance from a registered default function
//   - JSON, YAML, TOML compatible structures
//   - Validation with detailed error reporting
//
// # Architecture
//
// Configuration Flow:
//
//	┌─────────────────┐
//	│  Default Config │ (optional, via RegisterDefaultFunc)
//	└────────┬────────┘
//	         │ (if InheritDefault = true)
//	         ▼
//	┌─────────────────┐
//	│     Options     │──┐
//	├─────────────────┤  │
//	│ TraceFilter     │  │
//	│ Stdout          │  │ Merge logic
//	└────────┬────────┘  │ (Options(), Merge())
//	         │           │
//	         ▼           │
//	┌─────────────────┐  │
//	│ Final Options   │◄─┘
//	└────────┬────────┘
//	         │
//	         ▼
//	   Validation (Validate())
//	         │
//	         ▼
//	   Logger Creation
//
// # Basic Usage
//
// Creating a stdout configuration:
//
//	opts := &config.Options{
//	    Stdout: &config.OptionsStd{
//	        DisableStandard:  false,  // Enable stdout
//	        DisableStack:     true,   // No goroutine ID
//	        DisableTimestamp: false,  // Show timestamps
//	        EnableTrace:      true,   // Show caller info
//	        DisableColor:     false,  // Allow colors (if TTY)
//	        EnableAccessLog:  false,  // No access logs
//	    },
//	}
//
//	// Validate before use
//	if err := opts.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Inheritance
//
// Using default configuration with overrides:
//
//	// Define base configuration
//	defaultConfig := func() *config.Options {
//	    return &config.Options{
//	        Stdout: &config.OptionsStd{
//	            EnableTrace:  true,
//	            DisableStack: true,
//	        },
//	    }
//	}
//
//	// Create specific configuration
//	opts := &config.Options{
//	    InheritDefault: true,            // Enable inheritance
//	    TraceFilter:    "/myproject/",   // Override trace filter
//	}
//	opts.RegisterDefaultFunc(defaultConfig)
//
//	// Get final merged configuration
//	final := opts.Options()
//
// # Configuration Sources
//
// JSON example:
//
//	{
//	  "inheritDefault": false,
//	  "traceFilter": "/myproject/",
//	  "stdout": {
//	    "disableStandard": false,
//	    "enableTrace": true
//	  }
//	}
//
// YAML example:
//
//	inheritDefault: false
//	traceFilter: /myproject/
//	stdout:
//	  disableStandard: false
//	  enableTrace: true
//
// # Default Configuration
//
// Retrieving the default configuration template:
//
//	// Get default config as JSON
//	defaultJSON := config.DefaultConfig("")
//
//	// Get formatted default config
//	prettyJSON := config.DefaultConfig("  ")
//
//	// Parse into Options
//	var opts config.Options
//	if err := json.Unmarshal(defaultJSON, &opts); err != nil {
//	    log.Fatal(err)
//	}
//
// Customizing defaults:
//
//	customDefault := []byte(`{
//	    "inheritDefault": false,
//	    "stdout": {
//	        "enableTrace": true
//	    }
//	}`)
//
//	config.SetDefaultConfig(customDefault)
//
// # Validation
//
// The Validate method uses go-playground/validator for struct validation:
//
//	opts := &config.Options{
//	    // ... configuration
//	}
//
//	if err := opts.Validate(); err != nil {
//	    // err is a liberr.Error containing all validation failures
//	    fmt.Println("Validation errors:", err)
//	    return
//	}
//
// # Trace Filtering
//
// The TraceFilter field allows cleaning file paths in stack traces:
//
//	opts := &config.Options{
//	    TraceFilter: "/go/src/github.com/myproject/",
//	    Stdout: &config.OptionsStd{
//	        EnableTrace: true,
//	    },
//	}
//
// With TraceFilter:
//
//	main.go:42 instead of /go/src/github.com/myproject/main.go:42
//
// This shortens log messages and removes environment-specific paths.
//
// # Formatting Options
//
// OptionsStd supports the following formatting flags:
//
//   - DisableStack: Hide goroutine ID before each message
//   - DisableTimestamp: Hide timestamp before each message
//   - EnableTrace: Add caller file/line information
//   - EnableAccessLog: Include access-log style entries
//   - DisableColor: Disable colored output
//   - DisableStandard: Completely disable this output
//
// # Cloning and Merging
//
// Cloning creates independent copies:
//
//	original := &config.Options{
//	    TraceFilter: "/original/",
//	    Stdout:      &config.OptionsStd{EnableTrace: true},
//	}
//
//	clone := original.Clone()
//	clone.TraceFilter = "/modified/"  // Doesn't affect original
//
// Merging combines configurations:
//
//	base := &config.Options{
//	    Stdout: &config.OptionsStd{
//	        EnableTrace: true,
//	    },
//	}
//
//	override := &config.Options{
//	    TraceFilter: "/project/",
//	    Stdout: &config.OptionsStd{
//	        DisableColor: true,
//	    },
//	}
//
//	base.Merge(override)
//	// base.Stdout now has: EnableTrace=true, DisableColor=true
//	// base.TraceFilter is "/project/"
//
// # Error Handling
//
// The package defines two error codes:
//
//   - ErrorParamEmpty: Provided parameter is empty or nil
//   - ErrorValidatorError: Configuration validation failed
//
// Error usage:
//
//	err := config.ErrorParamEmpty.Error(nil)
//	if err != nil {
//	    log.Println("Error:", err)
//	}
//
//	// With validation
//	opts := &config.Options{}
//	if validationErr := opts.Validate(); validationErr != nil {
//	    // validationErr is of type liberr.Error
//	    return config.ErrorValidatorError.Error(validationErr)
//	}
//
// # Thread Safety
//
// Configuration structures are not thread-safe for modification but support:
//
//   - Safe cloning: Create independent copies
//   - Safe merging: Merge configurations before concurrent use
//   - Safe reading: Once created, Options can be read concurrently
//
// # Integration Examples
//
// See example_test.go for runnable examples including:
//   - Basic stdout logging
//   - Configuration inheritance
//   - Merge strategies
//   - JSON loading
package config
