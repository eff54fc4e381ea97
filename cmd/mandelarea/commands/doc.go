// Package commands defines the mandelarea CLI and wires the application for
// its subcommands.
//
// # Commands
//
//   - estimate     Estimate the area once with each selected method
//   - sweep        Run the sample-size × iteration grid and store the series
//   - repeat       Repeat one configuration and store the series
//   - iterations   Sweep the iteration budget at a fixed size
//   - true-area    Print, computing if needed, the cached reference area
//   - stats        Summarise a stored experiment against the reference area
//   - serve        Serve estimates over HTTP
//   - calibrate    Pick the evaluation worker count for this machine
//   - version      Print build information
//
// # Configuration
//
// Every setting is a persistent flag of the root command and can also be
// given as a MANDELAREA_ environment variable; flags win over the
// environment, which wins over the defaults.
package commands
