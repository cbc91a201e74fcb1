package structure

import (
	"fmt"

	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// NTopKWriteFunctionDDL emits topk_insert_T_M(pk_, rk_, new_value, new_payloads…),
// implementing the cyclic-cursor strong-k count + victim eviction of spec.md
// §4.E. Per design-notes §9, the cyclic cursor is a single
// ORDER BY ((rk - rk_ + maxNodes) % maxNodes) query rather than the source's
// two-subquery union.
func NTopKWriteFunctionDDL(s Spec) string {
	payloadParams := ""
	if len(s.Payload) > 0 {
		payloadParams = ", " + sqlident.TypedList(s.Payload, "_new")
	}
	params := fmt.Sprintf("%s, rk_ integer, new_value %s%s", s.pkParams("_"), s.Column.Type, payloadParams)

	payloadAssign := ""
	if len(s.Payload) > 0 {
		payloadAssign = ", " + assignmentList(s.Payload, "_new")
	}

	body := fmt.Sprintf(`DECLARE
  cnt integer := 0;
  rec record;
  victim_rk integer;
BEGIN
  FOR rec IN
    SELECT "rk", %s AS m FROM %s
    WHERE %s
    ORDER BY (("rk" - rk_ + %d) %% %d) ASC
  LOOP
    IF rec.m >= new_value THEN
      cnt := cnt + 1;
      IF cnt >= %d THEN
        RETURN;
      END IF;
    END IF;
  END LOOP;

  SELECT "rk" INTO victim_rk
  FROM (
    SELECT "rk", %s AS m FROM %s WHERE %s ORDER BY m DESC OFFSET GREATEST(%d - 1, 0)
  ) remainder
  ORDER BY random()
  LIMIT 1;

  UPDATE %s SET %s = new_value%s WHERE %s AND "rk" = victim_rk;
END;`,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"),
		s.MaxNodes, s.MaxNodes,
		s.K,
		quoteCol(s.Column), shardTableRef(s), s.pkPredicate("_"), s.K,
		shardTableRef(s), quoteCol(s.Column), payloadAssign, s.pkPredicate("_"),
	)
	return createFunction(s.FuncName("topk_insert"), params, "void", body, "plpgsql")
}
