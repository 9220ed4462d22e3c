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
Package transport defines how a candidate bundle reaches the device.

	      +-------------+
	      |  Transport  |
	      +------+------+
	             |
	     +-------+-------+
	     |               |
	+----+----+    +-----+-----+
	|   git   |    |  github   |
	| clone / |    | contents  |
	|  pull   |    |    api    |
	+---------+    +-----------+

🎯 Purpose:
- Fetches or refreshes the release branch into a local folder
- Reports a single tagged result, cloned or pulled
- Streams clone/pull progress on an optional channel

🔄 Flow:
1. Caller resolves a Factory by name (registered in init by subpackages)
2. Fetch clones on first use and pulls on every later use
3. The platform bundle is left at LocalFolder/BundlePath
4. Any failure is wrapped in ErrTransport

Both success kinds feed the same fingerprint comparison downstream;
nothing here decides whether the bundle is new.
*/
package transport
