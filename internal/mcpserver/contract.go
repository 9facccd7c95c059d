package mcpserver

// QuerySyntax documents how search_files interprets its arguments.
const QuerySyntax = `# mksearch query syntax

mksearch returns the files that contain EVERY keyword (logical AND).

## Keywords

- ` + "`keywords`" + ` is a comma-separated list. The full-width comma (，) works too.
- Items are trimmed; empty items are dropped. At least one keyword is required.
- Keywords are literal text. There is no regex or fuzzy syntax.
- ` + "`case_sensitive`" + ` (default false): when false, keywords and file text are
  compared after lower-casing.
- ` + "`whole_word`" + ` (default false): a keyword only counts when it is not part of a
  larger word, so "cat" matches "the cat sat" but not "category".

## File filters

- ` + "`include`" + ` is a glob relative to the workspace root. Default: ` + "`**/*`" + `.
  ` + "`**`" + ` spans directories and ` + "`{a,b}`" + ` is an alternation, e.g. ` + "`**/*.{ts,go}`" + `.
- ` + "`exclude`" + ` is a comma-separated list of folder NAMES, not globs. Each name
  excludes that folder at any depth: ` + "`node_modules, dist`" + ` becomes
  ` + "`{**/node_modules/**,**/dist/**}`" + `.

## Results

Each matching file lists every keyword with up to 50 positions.
Lines are 1-based, characters are 0-based. Context lines are trimmed and cut
at 100 characters with "...". Binary files and unreadable files are skipped.
Use ` + "`max_results`" + ` to stop after N files.
`
