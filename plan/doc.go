package plan

// The following documentation is used to describe how a SELECT is mapped
// onto the phases the bytecode generator walks through.
//
// After the plan been generated, it will contain the following phases, which
// are emitted sequentially, one nested into the other.
//
// 0) Precheck
//    The conjuncts of the WHERE clause that need no table at all. They are
//    evaluated once before any loop, a false precheck skips the whole scan.
//
// 1) TableScan
//    For each TableScan object, a cursor is opened on the table's b-tree and
//    a Rewind/Next loop is generated. The filter of the scan only needs that
//    table, it is checked right after the loop is entered.
//
// 2) Join
//    The join phase nests the loops, one table one nest of loop, outermost is
//    the first FROM entry. Conditions that need several tables are placed in
//    the loop of the innermost table they need.
//
//    Rewind c0
//      Rewind c1
//        ...
//          if filter(...) { next phase }
//        Next c1
//    Next c0
//
// 3) GroupBy
//    The group by phase, if applicable, inserts every joined row into a
//    sorter keyed by the group by terms. Once sorted, the rows of a group are
//    adjacent, a change of the key flushes the previous group.
//
// 4) Agg
//    Every aggregate call owns one accumulator register. AggStep folds a row
//    in, AggFinal turns the accumulator into the value seen by the output,
//    HAVING and ORDER BY. Without GROUP BY the whole input is a single group.
//
// 5) Having
//    This phase will just perform a simple filter on a flushed group.
//
// 6) Output
//    This phase generates the row based on projection. DISTINCT keeps an
//    ephemeral index of the rows already handed out, LIMIT and OFFSET count
//    the rows right before ResultRow.
//
// 7) Sort
//    With ORDER BY the output row is not handed out directly, it goes into a
//    sorter along with the sort keys and a second loop over the sorter does
//    the output.
