/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package config holds the controller configuration.
//
// Values come from three layers, lowest precedence first: built-in
// defaults, an optional YAML file, and command-line flags that were set
// explicitly. A file value never overrides a flag given on the command line.
//
// Example file:
//
//	metricsBindAddress: ":8080"
//	watchNamespace: migrations
//	requestSelector: team=platform
//	operationTimeout: 30s
//	concurrentKinds: true
//	reservedConfigMaps: [kube-root-ca.crt, istio-ca-root-cert]
//	requestRetention: 72h
//	reconnect:
//	  initial: 1s
//	  max: 1m
//	  factor: 2
package config
