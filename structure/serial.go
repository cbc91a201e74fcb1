package structure

import "fmt"

// SerialPopFunctionDDL emits T_M(pk_ pktypes) RETURNS TABLE(pk…, m type),
// the counter hand-out described in spec.md §4.E: a cyclic cursor, same
// modular-arithmetic scan as NTopKWriteFunctionDDL (design-notes §9), started
// at a random rk_ and filtered by valid = true, picks the nearest valid shard
// going forward from that random start, marks it invalid, and returns it.
func SerialPopFunctionDDL(s Spec) string {
	params := s.pkParams("_")
	returns := fmt.Sprintf("TABLE(%s, m %s)", s.pkTableColumns(), s.Column.Type)
	body := fmt.Sprintf(`DECLARE
  rk_ integer := floor(random() * %d)::integer;
  chosen_rk integer;
  result_value %s;
BEGIN
  SELECT "rk", %s INTO chosen_rk, result_value
  FROM %s
  WHERE %s AND "valid" = true
  ORDER BY (("rk" - rk_ + %d) %% %d) ASC
  LIMIT 1;

  IF NOT FOUND THEN
    RETURN;
  END IF;

  UPDATE %s SET "valid" = false WHERE %s AND "rk" = chosen_rk;

%s  m := result_value;
  RETURN NEXT;
END;`,
		s.MaxNodes,
		s.Column.Type,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		s.MaxNodes, s.MaxNodes,
		shardTableRef(s), s.pkPredicate("_"),
		s.pkOutAssignments(),
	)
	// The pop function is named after the shard table itself (spec.md §4.E:
	// "T_M(pk_)"), not a prefixed helper name: Postgres keeps functions and
	// tables in separate namespaces so this is unambiguous.
	return createFunction(s.ShardTable(), params, returns, body, "plpgsql")
}

// SerialRefreshFunctionDDL emits refresh_T_M(pk_), reclaiming invalidated
// shards with monotonically increasing counters (spec.md §4.E).
func SerialRefreshFunctionDDL(s Spec) string {
	params := s.pkParams("_")
	body := fmt.Sprintf(`DECLARE
  max_counter %s;
  rec record;
BEGIN
  SELECT COALESCE(MAX(%s), -1) + 1 INTO max_counter FROM %s WHERE %s;

  FOR rec IN
    SELECT "rk" FROM %s WHERE %s AND "valid" = false ORDER BY "rk" ASC
  LOOP
    UPDATE %s SET %s = max_counter, "valid" = true WHERE %s AND "rk" = rec."rk";
    max_counter := max_counter + 1;
  END LOOP;
END;`,
		s.Column.Type,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		shardTableRef(s), s.pkPredicate("_"),
		shardTableRef(s), quoteCol(s.Column), s.pkPredicate("_"),
	)
	return createFunction(s.FuncName("refresh"), params, "void", body, "plpgsql")
}
