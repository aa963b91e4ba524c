// Copyright 2025 Poiesic Systems
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
// Package ai provides the embedding abstraction used by the index clients.
//
// Indexes depend on the Embedder interface rather than on a concrete model
// server. Two production implementations exist, both built on langchaingo:
//
//   - ai/ollama: the native Ollama embedding API
//   - ai/openai: OpenAI or any OpenAI-compatible server
//
// ai/mock provides a deterministic embedder for tests.
//
// # Constructor Return Type Pattern
//
// Public constructors (ollama.NewEmbedder, openai.NewEmbedder) return the
// ai.Embedder interface. Test constructors (mock.NewMockEmbedder) return
// concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithProvider(ai.ProviderOllama))
//	embedder, err := ollama.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "How do I cancel an order?")
package ai
