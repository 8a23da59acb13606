// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package route provides the parameter constraint types and route
// introspection record shared between the router package and its
// compiler.
//
// This package contains:
//   - Constraint / ParamConstraint: Parameter validation (int, UUID, regex, enum, etc.)
//   - Info: Introspection record for a registered route
//
// The types in this package are used at application startup during route
// registration and do not affect runtime request handling performance.
package route
