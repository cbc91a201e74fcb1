package structure

import "fmt"

// MaxWriteFunctionDDL emits max_T_M(pk_ pktypes, rk_ integer, new_value type)
// RETURNS integer, implementing the rendezvous slot pick + monotone update
// (spec.md §4.E). The return value is the number of shard rows the UPDATE
// touched (0 or 1), which update_T sums and surfaces to the caller.
func MaxWriteFunctionDDL(s Spec) string {
	params := fmt.Sprintf("%s, rk_ integer, new_value %s", s.pkParams("_"), s.Column.Type)
	body := fmt.Sprintf(`DECLARE
  chosen_rk integer;
  current_value %s;
  d integer := 0;
BEGIN
  SELECT "rk", %s INTO chosen_rk, current_value
  FROM %s
  WHERE %s AND "rk" >= rk_
  ORDER BY "rk" ASC
  LIMIT 1;

  IF NOT FOUND THEN
    SELECT "rk", %s INTO chosen_rk, current_value
    FROM %s
    WHERE %s
    ORDER BY "rk" ASC
    LIMIT 1;
  END IF;

  IF new_value > current_value THEN
    UPDATE %s SET %s = new_value WHERE %s AND "rk" = chosen_rk;
    GET DIAGNOSTICS d = ROW_COUNT;
  END IF;

  RETURN d;
END;`,
		s.Column.Type,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		shardTableRef(s), quoteCol(s.Column), s.pkPredicate("_"),
	)
	return createFunction(s.FuncName("max"), params, "integer", body, "plpgsql")
}
