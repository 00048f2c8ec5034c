// Package all links every built-in store backend into store.Open.
package all

import (
	_ "github.com/KaramelBytes/dataglimpse/internal/store/memory"
	_ "github.com/KaramelBytes/dataglimpse/internal/store/postgres"
	_ "github.com/KaramelBytes/dataglimpse/internal/store/sqlite"
)
