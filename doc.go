/*

Rotar schedules multi-level incremental tar backups.  Each run is
stateless: the rotation position is reconstructed from the archive
file names already present in the backup directory, the next archive
to create is derived from it, and archives no longer reachable from
the active chain are pruned.

Vocabulary:

- path: sequence of 1-based sibling indices locating one archive in
  the rotation tree; the empty path is the root (full) archive
- depth: length of a path; 0 = full archive, >0 = incremental
- tree: the set of paths present in a backup directory for one name
- active chain: the deepest fully-present path, i.e. the tip of the
  currently live incremental lineage; ties break toward the
  lexicographically greatest index sequence
- token: the incremental-state file (GNU tar snar) written when an
  archive is created; required to create children of that archive and
  kept for exactly as long as the archive itself
- retirement: deletion of an archive and its token once no future
  incremental or restore can reach it
- levels: total number of backup levels, including the full backup,
  so the maximum path depth is levels-1
- count: maximum number of sibling archives per incremental level

*/

package rotar
