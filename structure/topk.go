package structure

import "fmt"

// TopKWriteFunctionDDL emits topK_T_M(pk_ pktypes, rk_ integer, new_value type),
// implementing the sorted-array insertion/eviction algorithm of spec.md §4.E.
// Array slicing syntax relies on Postgres's empty-result-on-empty-range
// behaviour (arr[1:0] and arr[idx:sz] where idx > sz both yield '{}'). The
// full-array (sz >= k) eviction only applies when idx > 1: idx == 1 means
// new_value is <= the current minimum of a full array, a true no-op.
func TopKWriteFunctionDDL(s Spec) string {
	params := fmt.Sprintf("%s, rk_ integer, new_value %s", s.pkParams("_"), s.Column.Type)
	elemType := s.Column.Type
	body := fmt.Sprintf(`DECLARE
  chosen_rk integer;
  arr %s[];
  sz integer;
  idx integer;
BEGIN
  SELECT "rk", %s INTO chosen_rk, arr
  FROM %s
  WHERE %s AND "rk" >= rk_
  ORDER BY "rk" ASC
  LIMIT 1;

  IF NOT FOUND THEN
    SELECT "rk", %s INTO chosen_rk, arr
    FROM %s
    WHERE %s
    ORDER BY "rk" ASC
    LIMIT 1;
  END IF;

  sz := COALESCE(array_length(arr, 1), 0);
  idx := 1;
  WHILE idx <= sz AND arr[idx] < new_value LOOP
    idx := idx + 1;
  END LOOP;

  IF sz < %d THEN
    arr := arr[1:idx-1] || new_value || arr[idx:sz];
    UPDATE %s SET %s = arr WHERE %s AND "rk" = chosen_rk;
  ELSIF idx > 1 THEN
    arr := arr[2:idx-1] || new_value || arr[idx:sz];
    UPDATE %s SET %s = arr WHERE %s AND "rk" = chosen_rk;
  END IF;
END;`,
		elemType,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		s.K,
		shardTableRef(s), quoteCol(s.Column), s.pkPredicate("_"),
		shardTableRef(s), quoteCol(s.Column), s.pkPredicate("_"),
	)
	return createFunction(s.FuncName("topK"), params, "void", body, "plpgsql")
}
