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
Package config provides the read-only configuration surface of the update
engine.

	+-----------+     +-----------+     +-----------+
	|  profile  | --> |   file    | --> |  OTA_* env |
	| dev/stg/  |     | yaml/hcl/ |     |  overlay   |
	|   prod    |     |   json    |     |            |
	+-----------+     +-----------+     +-----------+

🎯 Purpose:
- Selects a built-in environment profile (staging disables updates)
- Layers an optional config file on top, chosen by extension
- Applies OTA_* environment variables last
- Validates and fills defaults for paths

Nothing in the engine mutates a Config after Load returns it.
*/
package config
