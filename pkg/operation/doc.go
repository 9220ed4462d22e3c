// Copyright 2025 walteh LLC
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

/*
Package operation implements the update orchestrator: one end-to-end attempt
to fetch, compare, install and activate a new bundle.

	Idle -> PolicyGate -> Transporting -> Comparing -> Installing
	                                                        |
	Idle <-  Reporting  <-----------  Invalidating  <-------+

🎯 Purpose:
- Gates every run on configuration and the single-flight guard
- Funnels clone and pull results into the same fingerprint comparison
- Installs to a uniquely named path so path-keyed caches miss
- Runs the cache invalidator before reporting "installed"
- Converts every failure into a Result, never a panic or error

🤝 Interfaces:
- transport.Transport fetches the candidate
- loader.Loader points the host at the installed copy and restarts it
- Store persists the installed fingerprint
- Prompter surfaces results in interactive mode

Clear cache, restart and pending detection live here too, since they share
the same guard and collaborators.
*/
package operation
